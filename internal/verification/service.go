package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/internal/farms"
	"github.com/marondal/donation-engine/internal/receipts"
	"github.com/marondal/donation-engine/internal/trustscore"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/exif"
	"github.com/marondal/donation-engine/pkg/geo"
	"github.com/marondal/donation-engine/pkg/money"
	"github.com/marondal/donation-engine/pkg/ocr"
	"github.com/marondal/donation-engine/pkg/oracle"
	"github.com/marondal/donation-engine/pkg/outbox"
	"github.com/marondal/donation-engine/pkg/outbox/payloads"
)

const verifiedReceiptDelta = 1

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type receiptExtractor interface {
	Extract(ctx context.Context, imageRef string) (*ocr.ExtractedReceipt, error)
}

type verdictOracle interface {
	Assess(ctx context.Context, req oracle.AssessmentRequest) (*oracle.Verdict, error)
}

type provenanceInspector interface {
	Inspect(ctx context.Context, imageRef string) (*exif.Provenance, error)
}

type trustApplier interface {
	ApplyTx(ctx context.Context, tx *gorm.DB, input trustscore.ApplyInput) (*models.TrustScoreEvent, error)
}

// Service runs the receipt verification pipeline: OCR extraction, amount
// cross-check, and the category oracle. An OCR failure halts the pipeline
// without a verdict; an ineligible verdict is a normal terminal outcome.
type Service interface {
	Verify(ctx context.Context, receiptID uuid.UUID) (*models.ReceiptSubmission, error)
}

type service struct {
	receipts  receipts.Repository
	farms     farms.Repository
	extractor receiptExtractor
	oracle    verdictOracle
	inspector provenanceInspector
	trust     trustApplier
	tx        txRunner
	outbox    outboxPublisher

	maxDistanceMeters float64
	maxPhotoAge       time.Duration
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Receipts  receipts.Repository
	Farms     farms.Repository
	Extractor receiptExtractor
	Oracle    verdictOracle
	Inspector provenanceInspector
	Trust     trustApplier
	Tx        txRunner
	Outbox    outboxPublisher

	MaxDistanceMeters float64
	MaxPhotoAge       time.Duration
}

// NewService wires the verification pipeline.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Receipts == nil:
		return nil, fmt.Errorf("receipts repository required")
	case deps.Farms == nil:
		return nil, fmt.Errorf("farms repository required")
	case deps.Extractor == nil:
		return nil, fmt.Errorf("ocr extractor required")
	case deps.Oracle == nil:
		return nil, fmt.Errorf("verdict oracle required")
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
		receipts:          deps.Receipts,
		farms:             deps.Farms,
		extractor:         deps.Extractor,
		oracle:            deps.Oracle,
		inspector:         deps.Inspector,
		trust:             deps.Trust,
		tx:                deps.Tx,
		outbox:            deps.Outbox,
		maxDistanceMeters: deps.MaxDistanceMeters,
		maxPhotoAge:       deps.MaxPhotoAge,
	}, nil
}

func (s *service) Verify(ctx context.Context, receiptID uuid.UUID) (*models.ReceiptSubmission, error) {
	if receiptID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt id required")
	}

	receipt, err := s.receipts.FindByID(ctx, receiptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load receipt")
	}

	switch receipt.Status {
	case enums.ReceiptStatusPending:
	case enums.ReceiptStatusVerifiedEligible, enums.ReceiptStatusVerifiedIneligible:
		// Verdicts are final; re-running the pipeline replays the outcome.
		return receipt, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "receipt is not awaiting verification").
			WithDetails(map[string]string{"status": string(receipt.Status)})
	}

	farm, err := s.farms.FindByID(ctx, receipt.FarmID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "farm not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farm")
	}

	// Stage A. A hard OCR failure leaves the receipt PENDING with no verdict;
	// the farmer must re-upload a readable image.
	extracted, err := s.extractor.Extract(ctx, receipt.ReceiptImageRef)
	if err != nil {
		return nil, err
	}

	verdict, err := s.crossCheck(ctx, receipt, extracted)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.receipts.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(ctx, receipt.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock receipt")
		}
		if locked.Status != enums.ReceiptStatusPending {
			// A concurrent verify won the race.
			receipt = locked
			return nil
		}

		locked.Status = verdict.status
		locked.VerdictResult = &verdict.result
		locked.VerdictReason = &verdict.reason
		locked.AmountMatch = &verdict.amountMatch
		locked.ExtractedAmount = verdict.extractedAmount
		locked.MatchedItems = verdict.matchedItems
		if err := repo.Save(ctx, locked); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save verdict")
		}
		receipt = locked

		if verdict.status == enums.ReceiptStatusVerifiedEligible {
			delta, reason := s.certificationDelta(ctx, locked, farm)
			if _, err := s.trust.ApplyTx(ctx, tx, trustscore.ApplyInput{
				FarmID:   locked.FarmID,
				Category: enums.TrustCategoryReceipt,
				Delta:    delta,
				SourceID: &locked.ID,
				Reason:   reason,
			}); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReceiptVerified,
			AggregateType: enums.AggregateReceiptSubmission,
			AggregateID:   locked.ID,
			Version:       1,
			OccurredAt:    time.Now(),
			Data: payloads.ReceiptVerifiedEvent{
				ReceiptID:     locked.ID,
				FarmID:        locked.FarmID,
				Status:        locked.Status,
				VerdictReason: verdict.reason,
				AmountMatch:   verdict.amountMatch,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

type crossCheckResult struct {
	status          enums.ReceiptStatus
	result          enums.VerdictResult
	reason          string
	amountMatch     bool
	extractedAmount *decimal.Decimal
	matchedItems    []string
}

// crossCheck is Stage B: format-insensitive amount comparison plus the
// category oracle. The oracle is only consulted when the amounts agree; an
// unreachable oracle is a retryable failure, never an INELIGIBLE verdict.
func (s *service) crossCheck(ctx context.Context, receipt *models.ReceiptSubmission, extracted *ocr.ExtractedReceipt) (crossCheckResult, error) {
	extractedAmount, parseErr := money.ParseAmount(extracted.TotalAmount)
	if parseErr != nil {
		return crossCheckResult{
			status: enums.ReceiptStatusVerifiedIneligible,
			result: enums.VerdictIneligible,
			reason: fmt.Sprintf("amount mismatch: could not read a total amount from the receipt (%q)", extracted.TotalAmount),
		}, nil
	}

	if !extractedAmount.Equal(receipt.ClaimedAmount) {
		return crossCheckResult{
			status:          enums.ReceiptStatusVerifiedIneligible,
			result:          enums.VerdictIneligible,
			reason:          fmt.Sprintf("amount mismatch: receipt shows %s, claim is %s", extractedAmount, receipt.ClaimedAmount),
			extractedAmount: &extractedAmount,
		}, nil
	}

	verdict, err := s.oracle.Assess(ctx, oracle.AssessmentRequest{
		Category:              receipt.Category,
		StoreName:             extracted.StoreName,
		StoreAddress:          extracted.StoreAddress,
		LineItems:             toAssessmentItems(extracted.LineItems),
		ClaimedAmount:         receipt.ClaimedAmount.String(),
		CertificationImageRef: receipt.CertificationImageRef,
	})
	if err != nil {
		return crossCheckResult{}, err
	}

	if verdict.Result != enums.VerdictEligible {
		reason := verdict.Reason
		if reason == "" {
			reason = "oracle rejection: purchases do not match the claimed category"
		}
		return crossCheckResult{
			status:          enums.ReceiptStatusVerifiedIneligible,
			result:          enums.VerdictIneligible,
			reason:          reason,
			amountMatch:     true,
			extractedAmount: &extractedAmount,
			matchedItems:    verdict.MatchedItems,
		}, nil
	}

	return crossCheckResult{
		status:          enums.ReceiptStatusVerifiedEligible,
		result:          enums.VerdictEligible,
		reason:          verdict.Reason,
		amountMatch:     true,
		extractedAmount: &extractedAmount,
		matchedItems:    verdict.MatchedItems,
	}, nil
}

// certificationDelta decides the trust adjustment for an eligible receipt.
// Missing or inconsistent capture metadata on the certification photo
// suppresses the reward to zero without penalizing.
func (s *service) certificationDelta(ctx context.Context, receipt *models.ReceiptSubmission, farm *models.Farm) (int, string) {
	provenance, err := s.inspector.Inspect(ctx, receipt.CertificationImageRef)
	if err != nil || provenance == nil {
		return 0, "certification photo metadata unavailable"
	}
	if !provenance.HasLocation() || provenance.TakenAt == nil {
		return 0, "certification photo missing capture metadata"
	}
	if time.Since(*provenance.TakenAt) > s.maxPhotoAge {
		return 0, "certification photo capture date too old"
	}
	if !geo.WithinRadius(*provenance.Latitude, *provenance.Longitude, farm.Latitude, farm.Longitude, s.maxDistanceMeters) {
		return 0, "certification photo taken away from the farm"
	}
	return verifiedReceiptDelta, "verified receipt with consistent certification photo"
}

func toAssessmentItems(items []ocr.LineItem) []oracle.AssessmentLineItem {
	if len(items) == 0 {
		return nil
	}
	converted := make([]oracle.AssessmentLineItem, 0, len(items))
	for _, item := range items {
		converted = append(converted, oracle.AssessmentLineItem{
			Name:       item.Name,
			Quantity:   item.Quantity,
			TotalPrice: item.TotalPrice,
		})
	}
	return converted
}
