package photos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/internal/farms"
	"github.com/marondal/donation-engine/internal/trustscore"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/exif"
	"github.com/marondal/donation-engine/pkg/outbox"
)

type fakeRepository struct {
	photos []models.ConditionPhoto
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) CreateBatch(ctx context.Context, photos []*models.ConditionPhoto) error {
	for _, photo := range photos {
		photo.ID = uuid.New()
		f.photos = append(f.photos, *photo)
	}
	return nil
}

func (f *fakeRepository) ListByFarmMonth(ctx context.Context, farmID uuid.UUID, month time.Time) ([]models.ConditionPhoto, error) {
	var out []models.ConditionPhoto
	for _, photo := range f.photos {
		if photo.FarmID == farmID && photo.Month.Equal(month) {
			out = append(out, photo)
		}
	}
	return out, nil
}

type fakeFarmRepo struct {
	farm *models.Farm
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

func (f *fakeFarmRepo) Save(ctx context.Context, farm *models.Farm) error { return nil }

type fakeInspector struct {
	byRef map[string]*exif.Provenance
	err   error
}

func (f *fakeInspector) Inspect(ctx context.Context, imageRef string) (*exif.Provenance, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byRef[imageRef], nil
}

type fakeTrust struct {
	applied []trustscore.ApplyInput
	score   int
}

func (f *fakeTrust) ApplyTx(ctx context.Context, tx *gorm.DB, input trustscore.ApplyInput) (*models.TrustScoreEvent, error) {
	f.applied = append(f.applied, input)
	f.score += input.Delta
	return &models.TrustScoreEvent{ID: uuid.New(), FarmID: input.FarmID, Delta: input.Delta, ScoreAfter: f.score}, nil
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

type photoFixture struct {
	svc       Service
	repo      *fakeRepository
	inspector *fakeInspector
	trust     *fakeTrust
	outbox    *fakeOutbox
	farm      *models.Farm
}

func newFixture(t *testing.T) *photoFixture {
	t.Helper()

	farm := &models.Farm{ID: uuid.New(), Latitude: 33.4996, Longitude: 126.5312, TrustScore: 50}
	repo := &fakeRepository{}
	inspector := &fakeInspector{byRef: map[string]*exif.Provenance{}}
	trust := &fakeTrust{score: farm.TrustScore}
	publisher := &fakeOutbox{}

	svc, err := NewService(Deps{
		Repo:              repo,
		Farms:             &fakeFarmRepo{farm: farm},
		Inspector:         inspector,
		Trust:             trust,
		Tx:                stubTxRunner{},
		Outbox:            publisher,
		MaxDistanceMeters: 1000,
		MaxPhotoAge:       72 * time.Hour,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return &photoFixture{svc: svc, repo: repo, inspector: inspector, trust: trust, outbox: publisher, farm: farm}
}

func (fx *photoFixture) stampValid(ref string) {
	takenAt := time.Now().Add(-2 * time.Hour)
	lat, lon := fx.farm.Latitude, fx.farm.Longitude
	fx.inspector.byRef[ref] = &exif.Provenance{TakenAt: &takenAt, Latitude: &lat, Longitude: &lon}
}

func fullBatch() []PhotoInput {
	return []PhotoInput{
		{Angle: enums.PhotoAngleFront, ImageRef: "img-front"},
		{Angle: enums.PhotoAngleSide, ImageRef: "img-side"},
		{Angle: enums.PhotoAngleBack, ImageRef: "img-back"},
		{Angle: enums.PhotoAngleStable, ImageRef: "img-stable"},
	}
}

func TestService_SubmitBatchFullyValidated(t *testing.T) {
	fx := newFixture(t)
	for _, in := range fullBatch() {
		fx.stampValid(in.ImageRef)
	}

	status, err := fx.svc.SubmitBatch(context.Background(), SubmitBatchInput{
		FarmID: fx.farm.ID,
		Month:  time.Date(2025, time.June, 12, 10, 0, 0, 0, time.UTC),
		Photos: fullBatch(),
	})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	if !status.FullyValidated {
		t.Fatalf("expected fully validated batch: %+v", status)
	}
	if !status.Month.Equal(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("month not normalized: %s", status.Month)
	}
	if len(fx.trust.applied) != 1 || fx.trust.applied[0].Delta != 5 {
		t.Fatalf("expected +5 farm-photo delta, got %+v", fx.trust.applied)
	}
	if len(fx.outbox.events) != 1 || fx.outbox.events[0].EventType != enums.EventPhotoBatchFullyValidated {
		t.Fatalf("expected photo_batch_fully_validated event, got %+v", fx.outbox.events)
	}
}

func TestService_SubmitBatchNoMetadataFails(t *testing.T) {
	fx := newFixture(t)
	// Three good angles, one with no embedded metadata at all.
	batch := fullBatch()
	for _, in := range batch[:3] {
		fx.stampValid(in.ImageRef)
	}

	status, err := fx.svc.SubmitBatch(context.Background(), SubmitBatchInput{
		FarmID: fx.farm.ID,
		Month:  time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		Photos: batch,
	})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	if status.FullyValidated {
		t.Fatal("missing metadata must fail validation")
	}
	if len(status.MissingAngles) != 1 || status.MissingAngles[0] != enums.PhotoAngleStable {
		t.Fatalf("expected stable angle missing, got %v", status.MissingAngles)
	}
	if len(fx.trust.applied) != 1 || fx.trust.applied[0].Delta != 0 {
		t.Fatalf("metadata mismatch must post a zero delta, got %+v", fx.trust.applied)
	}
}

func TestService_SubmitBatchBoundaryDistancePasses(t *testing.T) {
	fx := newFixture(t)
	batch := []PhotoInput{{Angle: enums.PhotoAngleFront, ImageRef: "img-front"}}

	// Roughly 995m north of the farm, inside the 1000m limit.
	takenAt := time.Now().Add(-time.Hour)
	lat := fx.farm.Latitude + 995.0/111320.0
	lon := fx.farm.Longitude
	fx.inspector.byRef["img-front"] = &exif.Provenance{TakenAt: &takenAt, Latitude: &lat, Longitude: &lon}

	status, err := fx.svc.SubmitBatch(context.Background(), SubmitBatchInput{
		FarmID: fx.farm.ID,
		Month:  time.Now(),
		Photos: batch,
	})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	if len(status.ValidAngles) != 1 {
		t.Fatalf("photo inside the radius must pass: %+v", status.Photos)
	}
}

func TestService_SubmitBatchTooFarFails(t *testing.T) {
	fx := newFixture(t)
	batch := []PhotoInput{{Angle: enums.PhotoAngleFront, ImageRef: "img-front"}}

	takenAt := time.Now().Add(-time.Hour)
	lat := fx.farm.Latitude + 0.05 // ~5.5km away
	lon := fx.farm.Longitude
	fx.inspector.byRef["img-front"] = &exif.Provenance{TakenAt: &takenAt, Latitude: &lat, Longitude: &lon}

	status, err := fx.svc.SubmitBatch(context.Background(), SubmitBatchInput{
		FarmID: fx.farm.ID,
		Month:  time.Now(),
		Photos: batch,
	})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	if len(status.ValidAngles) != 0 {
		t.Fatal("photo outside the radius must fail")
	}
	if status.Photos[0].RejectReason == nil {
		t.Fatal("expected a reject reason")
	}
}

func TestService_SubmitBatchStalePhotoFails(t *testing.T) {
	fx := newFixture(t)
	batch := []PhotoInput{{Angle: enums.PhotoAngleFront, ImageRef: "img-front"}}

	takenAt := time.Now().Add(-80 * time.Hour)
	lat, lon := fx.farm.Latitude, fx.farm.Longitude
	fx.inspector.byRef["img-front"] = &exif.Provenance{TakenAt: &takenAt, Latitude: &lat, Longitude: &lon}

	status, err := fx.svc.SubmitBatch(context.Background(), SubmitBatchInput{
		FarmID: fx.farm.ID,
		Month:  time.Now(),
		Photos: batch,
	})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	if len(status.ValidAngles) != 0 {
		t.Fatal("stale capture date must fail")
	}
}

func TestService_SubmitBatchAwardsOnlyOncePerMonth(t *testing.T) {
	fx := newFixture(t)
	for _, in := range fullBatch() {
		fx.stampValid(in.ImageRef)
	}
	month := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	if _, err := fx.svc.SubmitBatch(context.Background(), SubmitBatchInput{FarmID: fx.farm.ID, Month: month, Photos: fullBatch()}); err != nil {
		t.Fatalf("first SubmitBatch error: %v", err)
	}
	if _, err := fx.svc.SubmitBatch(context.Background(), SubmitBatchInput{FarmID: fx.farm.ID, Month: month, Photos: fullBatch()}); err != nil {
		t.Fatalf("second SubmitBatch error: %v", err)
	}

	awards := 0
	for _, applied := range fx.trust.applied {
		if applied.Delta == 5 {
			awards++
		}
	}
	if awards != 1 {
		t.Fatalf("expected one +5 award for the month, got %d", awards)
	}
}

func TestService_SubmitBatchValidation(t *testing.T) {
	fx := newFixture(t)

	tests := []struct {
		name  string
		input SubmitBatchInput
	}{
		{name: "missing farm", input: SubmitBatchInput{Month: time.Now(), Photos: fullBatch()}},
		{name: "no photos", input: SubmitBatchInput{FarmID: fx.farm.ID, Month: time.Now()}},
		{name: "duplicate angle", input: SubmitBatchInput{FarmID: fx.farm.ID, Month: time.Now(), Photos: []PhotoInput{
			{Angle: enums.PhotoAngleFront, ImageRef: "a"},
			{Angle: enums.PhotoAngleFront, ImageRef: "b"},
		}}},
		{name: "bad angle", input: SubmitBatchInput{FarmID: fx.farm.ID, Month: time.Now(), Photos: []PhotoInput{
			{Angle: enums.PhotoAngle("aerial"), ImageRef: "a"},
		}}},
		{name: "blank image ref", input: SubmitBatchInput{FarmID: fx.farm.ID, Month: time.Now(), Photos: []PhotoInput{
			{Angle: enums.PhotoAngleFront, ImageRef: "  "},
		}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.SubmitBatch(context.Background(), tc.input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected VALIDATION, got %v", err)
			}
		})
	}
}

func TestService_PostMissingUploadPenalty(t *testing.T) {
	fx := newFixture(t)
	month := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)

	// Only the front angle was validly uploaded.
	fx.repo.photos = append(fx.repo.photos, models.ConditionPhoto{
		ID: uuid.New(), FarmID: fx.farm.ID, Month: month, Angle: enums.PhotoAngleFront, Valid: true,
	})

	event, err := fx.svc.PostMissingUploadPenalty(context.Background(), fx.farm.ID, month)
	if err != nil {
		t.Fatalf("PostMissingUploadPenalty error: %v", err)
	}
	if event == nil || event.Delta != -3 {
		t.Fatalf("expected -3 for three missing angles, got %+v", event)
	}
	if len(fx.outbox.events) != 1 || fx.outbox.events[0].EventType != enums.EventMissingUploadPenaltyPosted {
		t.Fatalf("expected missing_upload_penalty_posted event, got %+v", fx.outbox.events)
	}
}

func TestService_PostMissingUploadPenaltyNoopWhenComplete(t *testing.T) {
	fx := newFixture(t)
	month := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	for _, angle := range enums.PhotoAngles() {
		fx.repo.photos = append(fx.repo.photos, models.ConditionPhoto{
			ID: uuid.New(), FarmID: fx.farm.ID, Month: month, Angle: angle, Valid: true,
		})
	}

	event, err := fx.svc.PostMissingUploadPenalty(context.Background(), fx.farm.ID, month)
	if err != nil {
		t.Fatalf("PostMissingUploadPenalty error: %v", err)
	}
	if event != nil {
		t.Fatalf("no penalty due, got %+v", event)
	}
	if len(fx.trust.applied) != 0 {
		t.Fatal("no delta should be applied")
	}
}
