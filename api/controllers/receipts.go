package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marondal/donation-engine/api/responses"
	"github.com/marondal/donation-engine/api/validators"
	"github.com/marondal/donation-engine/internal/receipts"
	"github.com/marondal/donation-engine/internal/verification"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/logger"
	"github.com/marondal/donation-engine/pkg/money"
	"github.com/marondal/donation-engine/pkg/pagination"
)

type receiptLineItemRequest struct {
	Name       string `json:"name" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
	UnitPrice  string `json:"unit_price" validate:"required"`
	TotalPrice string `json:"total_price" validate:"required"`
}

type receiptSubmitRequest struct {
	FarmID                string                   `json:"farm_id" validate:"required"`
	Category              string                   `json:"category" validate:"required"`
	ClaimedAmount         string                   `json:"claimed_amount" validate:"required"`
	StoreName             string                   `json:"store_name"`
	StoreAddress          string                   `json:"store_address"`
	StorePhone            string                   `json:"store_phone"`
	LineItems             []receiptLineItemRequest `json:"line_items"`
	ApprovalNumber        string                   `json:"approval_number"`
	CertificationImageRef string                   `json:"certification_image_ref" validate:"required"`
	ReceiptImageRef       string                   `json:"receipt_image_ref" validate:"required"`
}

func (r receiptSubmitRequest) toInput(idempotencyKey string) (receipts.SubmitInput, error) {
	farmID, err := uuid.Parse(strings.TrimSpace(r.FarmID))
	if err != nil {
		return receipts.SubmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid farm_id")
	}

	category, err := enums.ParseExpenseCategory(strings.TrimSpace(r.Category))
	if err != nil {
		return receipts.SubmitInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid expense category")
	}

	// Claimed amounts arrive in whatever format the farmer typed; keep
	// thousands separators and currency marks out of the comparison space.
	amount, err := money.ParseAmount(r.ClaimedAmount)
	if err != nil {
		return receipts.SubmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid claimed_amount")
	}

	items := make([]receipts.SubmitLineItem, 0, len(r.LineItems))
	for _, item := range r.LineItems {
		unitPrice, parseErr := money.ParseAmount(item.UnitPrice)
		if parseErr != nil {
			return receipts.SubmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid line item unit_price")
		}
		totalPrice, parseErr := money.ParseAmount(item.TotalPrice)
		if parseErr != nil {
			return receipts.SubmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid line item total_price")
		}
		items = append(items, receipts.SubmitLineItem{
			Name:       strings.TrimSpace(item.Name),
			Quantity:   item.Quantity,
			UnitPrice:  unitPrice,
			TotalPrice: totalPrice,
		})
	}

	return receipts.SubmitInput{
		IdempotencyKey:        idempotencyKey,
		FarmID:                farmID,
		Category:              category,
		ClaimedAmount:         amount,
		StoreName:             strings.TrimSpace(r.StoreName),
		StoreAddress:          strings.TrimSpace(r.StoreAddress),
		StorePhone:            strings.TrimSpace(r.StorePhone),
		LineItems:             items,
		ApprovalNumber:        strings.TrimSpace(r.ApprovalNumber),
		CertificationImageRef: strings.TrimSpace(r.CertificationImageRef),
		ReceiptImageRef:       strings.TrimSpace(r.ReceiptImageRef),
	}, nil
}

// ReceiptSubmit registers a new expense claim against a farm vault.
func ReceiptSubmit(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipt service unavailable"))
			return
		}

		idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if idempotencyKey == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
			return
		}

		var payload receiptSubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(idempotencyKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Submit(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, receiptResponseFromModel(created))
	}
}

// ReceiptGet returns a single receipt submission by id.
func ReceiptGet(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipt service unavailable"))
			return
		}

		receiptID, err := pathUUID(r, "receiptID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.Get(r.Context(), receiptID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, receiptResponseFromModel(receipt))
	}
}

// FarmReceiptsList returns a farm's receipts, optionally filtered by status.
func FarmReceiptsList(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipt service unavailable"))
			return
		}

		farmID, err := pathUUID(r, "farmID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.ReceiptStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, parseErr := enums.ParseReceiptStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid receipt status"))
				return
			}
			status = &parsed
		}

		list, err := svc.ListByFarm(r.Context(), farmID, status, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]receiptResponse, 0, len(list))
		for i := range list {
			items = append(items, receiptResponseFromModel(&list[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

// ReceiptVerify runs the verification pipeline on a pending receipt.
func ReceiptVerify(svc verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}

		receiptID, err := pathUUID(r, "receiptID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		verified, err := svc.Verify(r.Context(), receiptID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, receiptResponseFromModel(verified))
	}
}

type receiptLineItemResponse struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type receiptResponse struct {
	ID             uuid.UUID             `json:"id"`
	IdempotencyKey string                `json:"idempotency_key"`
	FarmID         uuid.UUID             `json:"farm_id"`
	Category       enums.ExpenseCategory `json:"category"`
	ClaimedAmount  decimal.Decimal       `json:"claimed_amount"`

	StoreName    string `json:"store_name,omitempty"`
	StoreAddress string `json:"store_address,omitempty"`
	StorePhone   string `json:"store_phone,omitempty"`

	LineItems      []receiptLineItemResponse `json:"line_items,omitempty"`
	ApprovalNumber string                    `json:"approval_number,omitempty"`

	CertificationImageRef string `json:"certification_image_ref"`
	ReceiptImageRef       string `json:"receipt_image_ref"`

	Status enums.ReceiptStatus `json:"status"`

	VerdictResult   *enums.VerdictResult `json:"verdict_result,omitempty"`
	VerdictReason   *string              `json:"verdict_reason,omitempty"`
	AmountMatch     *bool                `json:"amount_match,omitempty"`
	ExtractedAmount *decimal.Decimal     `json:"extracted_amount,omitempty"`
	MatchedItems    []string             `json:"matched_items,omitempty"`

	DebitedAt     *time.Time            `json:"debited_at,omitempty"`
	LedgerEntryID *uuid.UUID            `json:"ledger_entry_id,omitempty"`
	PayoutTxRef   *string               `json:"payout_tx_ref,omitempty"`
	BurnTxHash    *string               `json:"burn_tx_hash,omitempty"`
	FailedStep    *enums.SettlementStep `json:"failed_step,omitempty"`
	SettledAt     *time.Time            `json:"settled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func receiptResponseFromModel(m *models.ReceiptSubmission) receiptResponse {
	items := make([]receiptLineItemResponse, 0, len(m.LineItems))
	for _, item := range m.LineItems {
		items = append(items, receiptLineItemResponse{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		})
	}

	return receiptResponse{
		ID:                    m.ID,
		IdempotencyKey:        m.IdempotencyKey,
		FarmID:                m.FarmID,
		Category:              m.Category,
		ClaimedAmount:         m.ClaimedAmount,
		StoreName:             m.StoreName,
		StoreAddress:          m.StoreAddress,
		StorePhone:            m.StorePhone,
		LineItems:             items,
		ApprovalNumber:        m.ApprovalNumber,
		CertificationImageRef: m.CertificationImageRef,
		ReceiptImageRef:       m.ReceiptImageRef,
		Status:                m.Status,
		VerdictResult:         m.VerdictResult,
		VerdictReason:         m.VerdictReason,
		AmountMatch:           m.AmountMatch,
		ExtractedAmount:       m.ExtractedAmount,
		MatchedItems:          m.MatchedItems,
		DebitedAt:             m.DebitedAt,
		LedgerEntryID:         m.LedgerEntryID,
		PayoutTxRef:           m.PayoutTxRef,
		BurnTxHash:            m.BurnTxHash,
		FailedStep:            m.FailedStep,
		SettledAt:             m.SettledAt,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}
