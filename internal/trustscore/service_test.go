package trustscore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/internal/farms"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/outbox"
	"github.com/marondal/donation-engine/pkg/pagination"
)

type fakeRepository struct {
	created          []*models.TrustScoreEvent
	listFn           func(ctx context.Context, farmID uuid.UUID, window pagination.Window, limit int) ([]models.TrustScoreEvent, error)
	monthlyAverageFn func(ctx context.Context, farmID uuid.UUID, monthStart, monthEnd time.Time) (*float64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, event *models.TrustScoreEvent) error {
	event.ID = uuid.New()
	f.created = append(f.created, event)
	return nil
}

func (f *fakeRepository) ListByFarm(ctx context.Context, farmID uuid.UUID, window pagination.Window, limit int) ([]models.TrustScoreEvent, error) {
	if f.listFn != nil {
		return f.listFn(ctx, farmID, window, limit)
	}
	return nil, nil
}

func (f *fakeRepository) MonthlyAverage(ctx context.Context, farmID uuid.UUID, monthStart, monthEnd time.Time) (*float64, error) {
	if f.monthlyAverageFn != nil {
		return f.monthlyAverageFn(ctx, farmID, monthStart, monthEnd)
	}
	return nil, nil
}

type fakeFarmRepo struct {
	farm  *models.Farm
	saved *models.Farm
}

func (f *fakeFarmRepo) WithTx(tx *gorm.DB) farms.Repository { return f }

func (f *fakeFarmRepo) Create(ctx context.Context, farm *models.Farm) error { return nil }

func (f *fakeFarmRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
	if f.farm == nil || f.farm.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.farm, nil
}

func (f *fakeFarmRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeFarmRepo) List(ctx context.Context, status *enums.FarmStatus, limit int) ([]models.Farm, error) {
	return nil, nil
}

func (f *fakeFarmRepo) Save(ctx context.Context, farm *models.Farm) error {
	f.saved = farm
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func newTestService(t *testing.T, repo *fakeRepository, farmRepo *fakeFarmRepo, publisher *fakeOutbox) Service {
	t.Helper()
	svc, err := NewService(repo, farmRepo, stubTxRunner{}, publisher)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_ApplyPositiveDelta(t *testing.T) {
	farm := &models.Farm{ID: uuid.New(), TrustScore: 50}
	repo := &fakeRepository{}
	farmRepo := &fakeFarmRepo{farm: farm}
	publisher := &fakeOutbox{}
	svc := newTestService(t, repo, farmRepo, publisher)

	sourceID := uuid.New()
	event, err := svc.Apply(context.Background(), ApplyInput{
		FarmID:   farm.ID,
		Category: enums.TrustCategoryFarmPhoto,
		Delta:    5,
		SourceID: &sourceID,
		Reason:   "monthly photo batch fully validated",
	})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if event.ScoreAfter != 55 {
		t.Fatalf("expected score 55, got %d", event.ScoreAfter)
	}
	if farmRepo.saved == nil || farmRepo.saved.TrustScore != 55 {
		t.Fatalf("farm score not updated")
	}
	if len(publisher.events) != 1 || publisher.events[0].EventType != enums.EventTrustScoreDeltaApplied {
		t.Fatalf("expected trust_score_delta_applied event, got %+v", publisher.events)
	}
}

func TestService_ApplyClampsAtBounds(t *testing.T) {
	tests := []struct {
		name  string
		start int
		delta int
		want  int
	}{
		{name: "clamps at ceiling", start: 98, delta: 5, want: 100},
		{name: "clamps at floor", start: 0, delta: -1, want: 0},
		{name: "exact ceiling", start: 95, delta: 5, want: 100},
		{name: "exact floor", start: 1, delta: -1, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			farm := &models.Farm{ID: uuid.New(), TrustScore: tc.start}
			repo := &fakeRepository{}
			svc := newTestService(t, repo, &fakeFarmRepo{farm: farm}, &fakeOutbox{})

			event, err := svc.Apply(context.Background(), ApplyInput{
				FarmID:   farm.ID,
				Category: enums.TrustCategoryReceipt,
				Delta:    tc.delta,
			})
			if err != nil {
				t.Fatalf("Apply error: %v", err)
			}
			if event.ScoreAfter != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, event.ScoreAfter)
			}
			// The recorded delta stays what was requested even when clamped.
			if event.Delta != tc.delta {
				t.Fatalf("expected recorded delta %d, got %d", tc.delta, event.Delta)
			}
		})
	}
}

func TestService_ApplyZeroDeltaSkipsFarmSave(t *testing.T) {
	farm := &models.Farm{ID: uuid.New(), TrustScore: 42}
	repo := &fakeRepository{}
	farmRepo := &fakeFarmRepo{farm: farm}
	svc := newTestService(t, repo, farmRepo, &fakeOutbox{})

	event, err := svc.Apply(context.Background(), ApplyInput{
		FarmID:   farm.ID,
		Category: enums.TrustCategoryReceipt,
		Delta:    0,
		Reason:   "receipt metadata did not match farm",
	})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if event.ScoreAfter != 42 {
		t.Fatalf("expected unchanged score, got %d", event.ScoreAfter)
	}
	if farmRepo.saved != nil {
		t.Fatal("zero delta must not rewrite the farm row")
	}
	if len(repo.created) != 1 {
		t.Fatal("zero delta still records an event")
	}
}

func TestService_ApplyFarmNotFound(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, &fakeFarmRepo{}, &fakeOutbox{})

	_, err := svc.Apply(context.Background(), ApplyInput{
		FarmID:   uuid.New(),
		Category: enums.TrustCategoryReceipt,
		Delta:    1,
	})
	if err == nil {
		t.Fatal("expected not found error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestService_ApplyValidation(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, &fakeFarmRepo{}, &fakeOutbox{})

	if _, err := svc.Apply(context.Background(), ApplyInput{Category: enums.TrustCategoryReceipt}); err == nil {
		t.Fatal("expected error for missing farm id")
	}
	if _, err := svc.Apply(context.Background(), ApplyInput{FarmID: uuid.New(), Category: enums.TrustCategory("VIBES")}); err == nil {
		t.Fatal("expected error for invalid category")
	}
}

func TestService_MonthlyAverage(t *testing.T) {
	farmID := uuid.New()
	var gotStart, gotEnd time.Time
	want := 73.5
	repo := &fakeRepository{
		monthlyAverageFn: func(ctx context.Context, id uuid.UUID, monthStart, monthEnd time.Time) (*float64, error) {
			gotStart, gotEnd = monthStart, monthEnd
			return &want, nil
		},
	}
	svc := newTestService(t, repo, &fakeFarmRepo{}, &fakeOutbox{})

	avg, err := svc.MonthlyAverage(context.Background(), farmID, time.Date(2025, time.March, 17, 9, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("MonthlyAverage error: %v", err)
	}
	if avg == nil || *avg != want {
		t.Fatalf("expected %v, got %v", want, avg)
	}
	if !gotStart.Equal(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected month start %s", gotStart)
	}
	if !gotEnd.Equal(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected month end %s", gotEnd)
	}
}

func TestService_MonthlyAverageEmptyMonth(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, &fakeFarmRepo{}, &fakeOutbox{})

	avg, err := svc.MonthlyAverage(context.Background(), uuid.New(), time.Now())
	if err != nil {
		t.Fatalf("MonthlyAverage error: %v", err)
	}
	if avg != nil {
		t.Fatalf("expected nil for empty month, got %v", *avg)
	}
}

func TestService_HistoryWindowValidation(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, &fakeFarmRepo{}, &fakeOutbox{})

	from := time.Now()
	to := from.Add(-time.Hour)
	if _, err := svc.History(context.Background(), uuid.New(), pagination.Window{From: &from, To: &to}, 20); err == nil {
		t.Fatal("expected window validation error")
	}
}
