package trustscore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/internal/farms"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/outbox"
	"github.com/marondal/donation-engine/pkg/outbox/payloads"
	"github.com/marondal/donation-engine/pkg/pagination"
)

// Score bounds. Every adjustment is clamped into this range before it is
// written to the farm row or the event stream.
const (
	MinScore = 0
	MaxScore = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service accumulates trust score adjustments for farms.
type Service interface {
	Apply(ctx context.Context, input ApplyInput) (*models.TrustScoreEvent, error)
	// ApplyTx applies an adjustment inside the caller's transaction. The
	// verification and photo pipelines own the outer tx so the score change
	// commits with the activity that earned it.
	ApplyTx(ctx context.Context, tx *gorm.DB, input ApplyInput) (*models.TrustScoreEvent, error)
	History(ctx context.Context, farmID uuid.UUID, window pagination.Window, limit int) ([]models.TrustScoreEvent, error)
	// MonthlyAverage reports the mean score over the calendar month of the
	// given time, or nil when the farm recorded no events that month.
	MonthlyAverage(ctx context.Context, farmID uuid.UUID, month time.Time) (*float64, error)
}

// ApplyInput is one score adjustment. Delta may be zero to register an
// activity that carried no score change.
type ApplyInput struct {
	FarmID     uuid.UUID
	Category   enums.TrustCategory
	Delta      int
	SourceID   *uuid.UUID
	Reason     string
	OccurredAt time.Time
}

type service struct {
	repo   Repository
	farms  farms.Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService wires the trust score service with its dependencies.
func NewService(repo Repository, farmRepo farms.Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("trust score repository required")
	}
	if farmRepo == nil {
		return nil, fmt.Errorf("farms repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, farms: farmRepo, tx: tx, outbox: publisher}, nil
}

func (s *service) Apply(ctx context.Context, input ApplyInput) (*models.TrustScoreEvent, error) {
	var event *models.TrustScoreEvent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		applied, err := s.ApplyTx(ctx, tx, input)
		if err != nil {
			return err
		}
		event = applied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) ApplyTx(ctx context.Context, tx *gorm.DB, input ApplyInput) (*models.TrustScoreEvent, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.FarmID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm id required")
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid trust category")
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	farmRepo := s.farms.WithTx(tx)
	farm, err := farmRepo.FindByIDForUpdate(ctx, input.FarmID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "farm not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock farm")
	}

	scoreAfter := clamp(farm.TrustScore + input.Delta)

	event := &models.TrustScoreEvent{
		FarmID:     input.FarmID,
		Category:   input.Category,
		Delta:      input.Delta,
		ScoreAfter: scoreAfter,
		SourceID:   input.SourceID,
		Reason:     input.Reason,
		OccurredAt: occurredAt,
	}
	if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create trust score event")
	}

	if scoreAfter != farm.TrustScore {
		farm.TrustScore = scoreAfter
		if err := farmRepo.Save(ctx, farm); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update farm trust score")
		}
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTrustScoreDeltaApplied,
		AggregateType: enums.AggregateTrustScoreEvent,
		AggregateID:   event.ID,
		Version:       1,
		OccurredAt:    occurredAt,
		Data: payloads.TrustScoreDeltaAppliedEvent{
			FarmID:     event.FarmID,
			EventID:    event.ID,
			Category:   event.Category,
			Delta:      event.Delta,
			ScoreAfter: event.ScoreAfter,
		},
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) History(ctx context.Context, farmID uuid.UUID, window pagination.Window, limit int) ([]models.TrustScoreEvent, error) {
	if farmID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm id required")
	}
	if window.From != nil && window.To != nil && window.To.Before(*window.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "window end precedes start")
	}
	events, err := s.repo.ListByFarm(ctx, farmID, window, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list trust score events")
	}
	return events, nil
}

func (s *service) MonthlyAverage(ctx context.Context, farmID uuid.UUID, month time.Time) (*float64, error) {
	if farmID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm id required")
	}
	if month.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "month required")
	}
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	end := start.AddDate(0, 1, 0)

	avg, err := s.repo.MonthlyAverage(ctx, farmID, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute monthly average")
	}
	return avg, nil
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
