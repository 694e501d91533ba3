package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/pagination"
)

// Repository manages persistence for vault ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.VaultLedgerEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.VaultLedgerEntry, error)
	// LastEntry returns the highest-seq entry for the farm, or nil when the
	// ledger is empty. Callers assigning the next seq must hold the farm row
	// lock first.
	LastEntry(ctx context.Context, farmID uuid.UUID) (*models.VaultLedgerEntry, error)
	List(ctx context.Context, farmID uuid.UUID, window pagination.Window, cursor *pagination.Cursor, limit int) ([]models.VaultLedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.VaultLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.VaultLedgerEntry, error) {
	var entry models.VaultLedgerEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) LastEntry(ctx context.Context, farmID uuid.UUID) (*models.VaultLedgerEntry, error) {
	var entry models.VaultLedgerEntry
	err := r.db.WithContext(ctx).
		Where("farm_id = ?", farmID).
		Order("seq DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) List(ctx context.Context, farmID uuid.UUID, window pagination.Window, cursor *pagination.Cursor, limit int) ([]models.VaultLedgerEntry, error) {
	// Seq breaks same-instant ties so pages replay in insertion order.
	query := r.db.WithContext(ctx).
		Where("farm_id = ?", farmID).
		Order("occurred_at DESC").
		Order("seq DESC")

	// Date bounds are inclusive on both ends.
	if window.From != nil {
		query = query.Where("occurred_at >= ?", *window.From)
	}
	if window.To != nil {
		query = query.Where("occurred_at <= ?", *window.To)
	}
	if cursor != nil {
		query = query.Where(
			"occurred_at < ? OR (occurred_at = ? AND seq < ?)",
			cursor.OccurredAt, cursor.OccurredAt, cursor.Seq,
		)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.VaultLedgerEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
