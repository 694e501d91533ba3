package photos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/pkg/db/models"
)

// Repository persists monthly condition-photo batches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, photos []*models.ConditionPhoto) error
	ListByFarmMonth(ctx context.Context, farmID uuid.UUID, month time.Time) ([]models.ConditionPhoto, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBatch(ctx context.Context, photos []*models.ConditionPhoto) error {
	if len(photos) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(photos).Error
}

func (r *repository) ListByFarmMonth(ctx context.Context, farmID uuid.UUID, month time.Time) ([]models.ConditionPhoto, error) {
	var photos []models.ConditionPhoto
	err := r.db.WithContext(ctx).
		Where("farm_id = ? AND month = ?", farmID, month).
		Order("created_at ASC").
		Find(&photos).Error
	if err != nil {
		return nil, err
	}
	return photos, nil
}
