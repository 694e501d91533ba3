package farms

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
)

// Repository manages persistence for farms.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, farm *models.Farm) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Farm, error)
	// FindByIDForUpdate locks the farm row for the duration of the
	// surrounding transaction. Callers must be inside WithTx.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Farm, error)
	List(ctx context.Context, status *enums.FarmStatus, limit int) ([]models.Farm, error)
	Save(ctx context.Context, farm *models.Farm) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a farm repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, farm *models.Farm) error {
	return r.db.WithContext(ctx).Create(farm).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
	var farm models.Farm
	if err := r.db.WithContext(ctx).First(&farm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &farm, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
	var farm models.Farm
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&farm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &farm, nil
}

func (r *repository) List(ctx context.Context, status *enums.FarmStatus, limit int) ([]models.Farm, error) {
	query := r.db.WithContext(ctx).Order("created_at ASC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var farms []models.Farm
	if err := query.Find(&farms).Error; err != nil {
		return nil, err
	}
	return farms, nil
}

func (r *repository) Save(ctx context.Context, farm *models.Farm) error {
	return r.db.WithContext(ctx).Save(farm).Error
}
