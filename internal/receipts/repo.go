package receipts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
)

// Repository manages persistence for receipt submissions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, receipt *models.ReceiptSubmission) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ReceiptSubmission, error)
	// FindByIDForUpdate locks the receipt row inside the surrounding tx.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ReceiptSubmission, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.ReceiptSubmission, error)
	// ApprovalNumberExists reports whether another receipt already carries
	// the card approval number.
	ApprovalNumberExists(ctx context.Context, farmID uuid.UUID, approvalNumber string) (bool, error)
	ListByFarm(ctx context.Context, farmID uuid.UUID, status *enums.ReceiptStatus, limit int) ([]models.ReceiptSubmission, error)
	// ListPartialFailures returns settlements that stopped midway, oldest
	// first, for operator reconciliation.
	ListPartialFailures(ctx context.Context, limit int) ([]models.ReceiptSubmission, error)
	Save(ctx context.Context, receipt *models.ReceiptSubmission) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a receipt repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, receipt *models.ReceiptSubmission) error {
	return r.db.WithContext(ctx).Create(receipt).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReceiptSubmission, error) {
	var receipt models.ReceiptSubmission
	if err := r.db.WithContext(ctx).First(&receipt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ReceiptSubmission, error) {
	var receipt models.ReceiptSubmission
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&receipt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.ReceiptSubmission, error) {
	var receipt models.ReceiptSubmission
	err := r.db.WithContext(ctx).First(&receipt, "idempotency_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &receipt, nil
}

func (r *repository) ApprovalNumberExists(ctx context.Context, farmID uuid.UUID, approvalNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReceiptSubmission{}).
		Where("farm_id = ? AND approval_number = ?", farmID, approvalNumber).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListByFarm(ctx context.Context, farmID uuid.UUID, status *enums.ReceiptStatus, limit int) ([]models.ReceiptSubmission, error) {
	query := r.db.WithContext(ctx).
		Where("farm_id = ?", farmID).
		Order("created_at DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var receipts []models.ReceiptSubmission
	if err := query.Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *repository) ListPartialFailures(ctx context.Context, limit int) ([]models.ReceiptSubmission, error) {
	query := r.db.WithContext(ctx).
		Where("failed_step IS NOT NULL").
		Where("status <> ?", enums.ReceiptStatusSettled).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var receipts []models.ReceiptSubmission
	if err := query.Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *repository) Save(ctx context.Context, receipt *models.ReceiptSubmission) error {
	return r.db.WithContext(ctx).Save(receipt).Error
}
