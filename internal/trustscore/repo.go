package trustscore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/pagination"
)

// Repository persists trust score events. The event stream is append-only;
// the current score lives on the farm row and is updated in the same
// transaction as each event.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.TrustScoreEvent) error
	ListByFarm(ctx context.Context, farmID uuid.UUID, window pagination.Window, limit int) ([]models.TrustScoreEvent, error)
	// MonthlyAverage returns the mean score_after over [monthStart, monthEnd).
	// It returns nil when the farm has no events in that span.
	MonthlyAverage(ctx context.Context, farmID uuid.UUID, monthStart, monthEnd time.Time) (*float64, error)
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

func (r *repository) Create(ctx context.Context, event *models.TrustScoreEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListByFarm(ctx context.Context, farmID uuid.UUID, window pagination.Window, limit int) ([]models.TrustScoreEvent, error) {
	query := r.db.WithContext(ctx).
		Where("farm_id = ?", farmID).
		Order("occurred_at DESC, id DESC").
		Limit(pagination.NormalizeLimit(limit))
	if window.From != nil {
		query = query.Where("occurred_at >= ?", *window.From)
	}
	if window.To != nil {
		query = query.Where("occurred_at <= ?", *window.To)
	}

	var events []models.TrustScoreEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) MonthlyAverage(ctx context.Context, farmID uuid.UUID, monthStart, monthEnd time.Time) (*float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).
		Model(&models.TrustScoreEvent{}).
		Select("AVG(score_after)").
		Where("farm_id = ?", farmID).
		Where("occurred_at >= ? AND occurred_at < ?", monthStart, monthEnd).
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	return avg, nil
}
