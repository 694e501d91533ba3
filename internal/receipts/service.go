package receipts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/pkg/db"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/money"
)

const maxIdempotencyKeyLen = 36

// Service defines receipt submission operations. Verification and
// settlement move receipts through later states; this service owns intake.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.ReceiptSubmission, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ReceiptSubmission, error)
	ListByFarm(ctx context.Context, farmID uuid.UUID, status *enums.ReceiptStatus, limit int) ([]models.ReceiptSubmission, error)
}

type service struct {
	repo Repository
}

// SubmitLineItem is one purchased item as claimed by the farmer.
type SubmitLineItem struct {
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// SubmitInput captures a new expense claim against a farm vault.
type SubmitInput struct {
	IdempotencyKey        string
	FarmID                uuid.UUID
	Category              enums.ExpenseCategory
	ClaimedAmount         decimal.Decimal
	StoreName             string
	StoreAddress          string
	StorePhone            string
	LineItems             []SubmitLineItem
	ApprovalNumber        string
	CertificationImageRef string
	ReceiptImageRef       string
}

// NewService wires a receipt service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("receipts repository required")
	}
	return &service{repo: repo}, nil
}

// Submit records a new claim. Replaying an in-flight idempotency key returns
// the original row with its live status; a key whose claim already settled
// is a conflict. A reused card approval number is stored but classified
// REJECTED_DUPLICATE so it never reaches verification.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.ReceiptSubmission, error) {
	if err := validateSubmit(input); err != nil {
		return nil, err
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	existing, err := s.repo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup idempotency key")
	}
	if existing != nil {
		return replayExisting(existing, input.FarmID)
	}

	status := enums.ReceiptStatusPending
	approval := strings.TrimSpace(input.ApprovalNumber)
	if approval != "" {
		duplicate, err := s.repo.ApprovalNumberExists(ctx, input.FarmID, approval)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check approval number")
		}
		if duplicate {
			status = enums.ReceiptStatusRejectedDuplicate
		}
	}

	receipt := &models.ReceiptSubmission{
		IdempotencyKey:        key,
		FarmID:                input.FarmID,
		Category:              input.Category,
		ClaimedAmount:         input.ClaimedAmount,
		StoreName:             strings.TrimSpace(input.StoreName),
		StoreAddress:          strings.TrimSpace(input.StoreAddress),
		StorePhone:            strings.TrimSpace(input.StorePhone),
		LineItems:             toModelLineItems(input.LineItems),
		ApprovalNumber:        approval,
		CertificationImageRef: input.CertificationImageRef,
		ReceiptImageRef:       input.ReceiptImageRef,
		Status:                status,
	}

	if err := s.repo.Create(ctx, receipt); err != nil {
		// A concurrent submit with the same key can beat us to the insert.
		if db.IsUniqueViolation(err, "uq_receipt_idempotency_key") {
			winner, lookupErr := s.repo.FindByIdempotencyKey(ctx, key)
			if lookupErr == nil && winner != nil {
				return replayExisting(winner, input.FarmID)
			}
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create receipt submission")
	}
	return receipt, nil
}

// replayExisting classifies a reused idempotency key. A key held by another
// farm or a fully processed claim is a hard conflict; anything still in
// flight replays the original row with its live status.
func replayExisting(existing *models.ReceiptSubmission, farmID uuid.UUID) (*models.ReceiptSubmission, error) {
	if existing.FarmID != farmID {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used by another farm")
	}
	if existing.Status == enums.ReceiptStatusSettled {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "claim for this idempotency key is already fully processed").
			WithDetails(map[string]string{
				"receipt_id": existing.ID.String(),
				"status":     string(existing.Status),
			})
	}
	return existing, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.ReceiptSubmission, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt id required")
	}
	receipt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load receipt")
	}
	return receipt, nil
}

func (s *service) ListByFarm(ctx context.Context, farmID uuid.UUID, status *enums.ReceiptStatus, limit int) ([]models.ReceiptSubmission, error) {
	if farmID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm id required")
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid receipt status filter")
	}
	receipts, err := s.repo.ListByFarm(ctx, farmID, status, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list receipts")
	}
	return receipts, nil
}

func validateSubmit(input SubmitInput) error {
	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if len(key) > maxIdempotencyKeyLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key exceeds 36 characters")
	}
	if input.FarmID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "farm id required")
	}
	if !input.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid expense category")
	}
	if !money.IsPositive(input.ClaimedAmount) {
		return pkgerrors.New(pkgerrors.CodeValidation, "claimed amount must be positive")
	}
	if strings.TrimSpace(input.CertificationImageRef) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "certification image required")
	}
	if strings.TrimSpace(input.ReceiptImageRef) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "receipt image required")
	}
	return nil
}

func toModelLineItems(items []SubmitLineItem) []models.ReceiptLineItem {
	if len(items) == 0 {
		return nil
	}
	converted := make([]models.ReceiptLineItem, 0, len(items))
	for _, item := range items {
		converted = append(converted, models.ReceiptLineItem{
			Name:       strings.TrimSpace(item.Name),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		})
	}
	return converted
}
