package photos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/internal/farms"
	"github.com/marondal/donation-engine/internal/trustscore"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/exif"
	"github.com/marondal/donation-engine/pkg/geo"
	"github.com/marondal/donation-engine/pkg/outbox"
	"github.com/marondal/donation-engine/pkg/outbox/payloads"
)

// Trust deltas posted by the photo workflow.
const (
	fullBatchDelta      = 5
	missingUploadDelta  = -1
	maxPhotosPerRequest = 4
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type provenanceInspector interface {
	Inspect(ctx context.Context, imageRef string) (*exif.Provenance, error)
}

type trustApplier interface {
	ApplyTx(ctx context.Context, tx *gorm.DB, input trustscore.ApplyInput) (*models.TrustScoreEvent, error)
}

// Service validates monthly horse-condition photo batches. Each of the four
// angles must carry capture metadata placing it at the farm within the
// recency window; only a fully validated batch earns the farm-photo delta.
type Service interface {
	SubmitBatch(ctx context.Context, input SubmitBatchInput) (*BatchStatus, error)
	GetBatch(ctx context.Context, farmID uuid.UUID, month time.Time) (*BatchStatus, error)
	// PostMissingUploadPenalty applies the per-angle penalty for a closed
	// month. Invoked by the monthly reconciler, not the upload path.
	PostMissingUploadPenalty(ctx context.Context, farmID uuid.UUID, month time.Time) (*models.TrustScoreEvent, error)
}

// PhotoInput is one angle of a submitted batch.
type PhotoInput struct {
	Angle    enums.PhotoAngle
	ImageRef string
}

// SubmitBatchInput is a batch of up to four condition photos for one month.
type SubmitBatchInput struct {
	FarmID uuid.UUID
	Month  time.Time
	Photos []PhotoInput
}

// BatchStatus is the per-angle validity of a month's uploads. Partial
// validation is visible but only a fully validated batch earns points.
type BatchStatus struct {
	FarmID         uuid.UUID
	Month          time.Time
	Photos         []models.ConditionPhoto
	ValidAngles    []enums.PhotoAngle
	MissingAngles  []enums.PhotoAngle
	FullyValidated bool
}

type service struct {
	repo      Repository
	farms     farms.Repository
	inspector provenanceInspector
	trust     trustApplier
	tx        txRunner
	outbox    outboxPublisher

	maxDistanceMeters float64
	maxPhotoAge       time.Duration
}

// Deps bundles the photo workflow's collaborators.
type Deps struct {
	Repo      Repository
	Farms     farms.Repository
	Inspector provenanceInspector
	Trust     trustApplier
	Tx        txRunner
	Outbox    outboxPublisher

	MaxDistanceMeters float64
	MaxPhotoAge       time.Duration
}

// NewService wires the condition-photo service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("photos repository required")
	case deps.Farms == nil:
		return nil, fmt.Errorf("farms repository required")
	case deps.Inspector == nil:
		return nil, fmt.Errorf("provenance inspector required")
	case deps.Trust == nil:
		return nil, fmt.Errorf("trust applier required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case deps.MaxDistanceMeters <= 0:
		return nil, fmt.Errorf("max distance must be positive")
	case deps.MaxPhotoAge <= 0:
		return nil, fmt.Errorf("max photo age must be positive")
	}
	return &service{
		repo:              deps.Repo,
		farms:             deps.Farms,
		inspector:         deps.Inspector,
		trust:             deps.Trust,
		tx:                deps.Tx,
		outbox:            deps.Outbox,
		maxDistanceMeters: deps.MaxDistanceMeters,
		maxPhotoAge:       deps.MaxPhotoAge,
	}, nil
}

func (s *service) SubmitBatch(ctx context.Context, input SubmitBatchInput) (*BatchStatus, error) {
	if err := validateBatch(input); err != nil {
		return nil, err
	}
	month := monthStart(input.Month)

	farm, err := s.farms.FindByID(ctx, input.FarmID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "farm not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farm")
	}

	photos := make([]*models.ConditionPhoto, 0, len(input.Photos))
	metadataRejected := false
	for _, in := range input.Photos {
		photo, err := s.inspect(ctx, farm, month, in)
		if err != nil {
			return nil, err
		}
		if !photo.Valid {
			metadataRejected = true
		}
		photos = append(photos, photo)
	}

	var status *BatchStatus
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.ListByFarmMonth(ctx, input.FarmID, month)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load month batch")
		}
		alreadyValidated := fullyValidated(existing)

		if err := repo.CreateBatch(ctx, photos); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save photo batch")
		}

		all := existing
		for _, photo := range photos {
			all = append(all, *photo)
		}
		status = buildStatus(input.FarmID, month, all)

		if status.FullyValidated && !alreadyValidated {
			if _, err := s.trust.ApplyTx(ctx, tx, trustscore.ApplyInput{
				FarmID:   input.FarmID,
				Category: enums.TrustCategoryFarmPhoto,
				Delta:    fullBatchDelta,
				Reason:   "monthly condition photo batch fully validated",
			}); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPhotoBatchFullyValidated,
				AggregateType: enums.AggregateFarm,
				AggregateID:   input.FarmID,
				Version:       1,
				OccurredAt:    time.Now(),
				Data: payloads.PhotoBatchFullyValidatedEvent{
					FarmID: input.FarmID,
					Month:  month,
				},
			})
		}

		if metadataRejected {
			// Uploads with bad capture metadata register but earn nothing.
			_, err := s.trust.ApplyTx(ctx, tx, trustscore.ApplyInput{
				FarmID:   input.FarmID,
				Category: enums.TrustCategoryHorsePhoto,
				Delta:    0,
				Reason:   "condition photo capture metadata missing or inconsistent",
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (s *service) GetBatch(ctx context.Context, farmID uuid.UUID, month time.Time) (*BatchStatus, error) {
	if farmID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm id required")
	}
	if month.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "month required")
	}
	normalized := monthStart(month)
	photos, err := s.repo.ListByFarmMonth(ctx, farmID, normalized)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load month batch")
	}
	return buildStatus(farmID, normalized, photos), nil
}

func (s *service) PostMissingUploadPenalty(ctx context.Context, farmID uuid.UUID, month time.Time) (*models.TrustScoreEvent, error) {
	if farmID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm id required")
	}
	if month.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "month required")
	}
	normalized := monthStart(month)

	photos, err := s.repo.ListByFarmMonth(ctx, farmID, normalized)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load month batch")
	}
	missing := missingAngles(photos)
	if len(missing) == 0 {
		return nil, nil
	}

	var event *models.TrustScoreEvent
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		applied, err := s.trust.ApplyTx(ctx, tx, trustscore.ApplyInput{
			FarmID:   farmID,
			Category: enums.TrustCategoryNotUploaded,
			Delta:    missingUploadDelta * len(missing),
			Reason:   fmt.Sprintf("missing condition photo angles: %s", joinAngles(missing)),
		})
		if err != nil {
			return err
		}
		event = applied

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMissingUploadPenaltyPosted,
			AggregateType: enums.AggregateFarm,
			AggregateID:   farmID,
			Version:       1,
			OccurredAt:    time.Now(),
			Data: payloads.MissingUploadPenaltyPostedEvent{
				FarmID:     farmID,
				Month:      normalized,
				ScoreAfter: applied.ScoreAfter,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// inspect reads capture metadata and judges one photo. A photo with no
// embedded location or date always fails, regardless of where it was taken.
func (s *service) inspect(ctx context.Context, farm *models.Farm, month time.Time, in PhotoInput) (*models.ConditionPhoto, error) {
	photo := &models.ConditionPhoto{
		FarmID:   farm.ID,
		Month:    month,
		Angle:    in.Angle,
		ImageRef: strings.TrimSpace(in.ImageRef),
	}

	provenance, err := s.inspector.Inspect(ctx, photo.ImageRef)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			reject(photo, "no capture metadata embedded in image")
			return photo, nil
		}
		return nil, err
	}
	if provenance == nil || !provenance.HasLocation() || provenance.TakenAt == nil {
		reject(photo, "capture metadata incomplete")
		if provenance != nil {
			photo.TakenAt = provenance.TakenAt
			photo.Latitude = provenance.Latitude
			photo.Longitude = provenance.Longitude
		}
		return photo, nil
	}

	photo.TakenAt = provenance.TakenAt
	photo.Latitude = provenance.Latitude
	photo.Longitude = provenance.Longitude

	distance := geo.DistanceMeters(*provenance.Latitude, *provenance.Longitude, farm.Latitude, farm.Longitude)
	photo.DistanceMeters = &distance

	switch {
	case time.Since(*provenance.TakenAt) > s.maxPhotoAge:
		reject(photo, "capture date outside recency window")
	case distance > s.maxDistanceMeters:
		reject(photo, fmt.Sprintf("captured %.0fm from the farm", distance))
	default:
		photo.Valid = true
	}
	return photo, nil
}

func validateBatch(input SubmitBatchInput) error {
	if input.FarmID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "farm id required")
	}
	if input.Month.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "month required")
	}
	if len(input.Photos) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one photo required")
	}
	if len(input.Photos) > maxPhotosPerRequest {
		return pkgerrors.New(pkgerrors.CodeValidation, "at most four photos per batch")
	}
	seen := make(map[enums.PhotoAngle]bool, len(input.Photos))
	for _, photo := range input.Photos {
		if !photo.Angle.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid photo angle")
		}
		if seen[photo.Angle] {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate photo angle in batch")
		}
		seen[photo.Angle] = true
		if strings.TrimSpace(photo.ImageRef) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "photo image reference required")
		}
	}
	return nil
}

func reject(photo *models.ConditionPhoto, reason string) {
	photo.Valid = false
	photo.RejectReason = &reason
}

func monthStart(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func buildStatus(farmID uuid.UUID, month time.Time, photos []models.ConditionPhoto) *BatchStatus {
	validSet := make(map[enums.PhotoAngle]bool)
	for _, photo := range photos {
		if photo.Valid {
			validSet[photo.Angle] = true
		}
	}
	status := &BatchStatus{
		FarmID: farmID,
		Month:  month,
		Photos: photos,
	}
	for _, angle := range enums.PhotoAngles() {
		if validSet[angle] {
			status.ValidAngles = append(status.ValidAngles, angle)
		} else {
			status.MissingAngles = append(status.MissingAngles, angle)
		}
	}
	status.FullyValidated = len(status.MissingAngles) == 0
	return status
}

func fullyValidated(photos []models.ConditionPhoto) bool {
	validSet := make(map[enums.PhotoAngle]bool)
	for _, photo := range photos {
		if photo.Valid {
			validSet[photo.Angle] = true
		}
	}
	return len(validSet) == len(enums.PhotoAngles())
}

func missingAngles(photos []models.ConditionPhoto) []enums.PhotoAngle {
	validSet := make(map[enums.PhotoAngle]bool)
	for _, photo := range photos {
		if photo.Valid {
			validSet[photo.Angle] = true
		}
	}
	var missing []enums.PhotoAngle
	for _, angle := range enums.PhotoAngles() {
		if !validSet[angle] {
			missing = append(missing, angle)
		}
	}
	return missing
}

func joinAngles(angles []enums.PhotoAngle) string {
	parts := make([]string, 0, len(angles))
	for _, angle := range angles {
		parts = append(parts, string(angle))
	}
	return strings.Join(parts, ", ")
}
