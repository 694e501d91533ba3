package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marondal/donation-engine/api/responses"
	"github.com/marondal/donation-engine/api/validators"
	"github.com/marondal/donation-engine/internal/ledger"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/logger"
)

type donationRecordRequest struct {
	FarmID          string     `json:"farm_id" validate:"required"`
	TokenAmount     string     `json:"token_amount" validate:"required"`
	DonorName       string     `json:"donor_name"`
	TransactionHash string     `json:"transaction_hash"`
	OccurredAt      *time.Time `json:"occurred_at"`
}

func (r donationRecordRequest) toInput() (ledger.RecordDonationInput, error) {
	farmID, err := uuid.Parse(strings.TrimSpace(r.FarmID))
	if err != nil {
		return ledger.RecordDonationInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid farm_id")
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(r.TokenAmount))
	if err != nil {
		return ledger.RecordDonationInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid token_amount")
	}

	input := ledger.RecordDonationInput{
		FarmID:          farmID,
		TokenAmount:     amount,
		DonorName:       strings.TrimSpace(r.DonorName),
		TransactionHash: strings.TrimSpace(r.TransactionHash),
	}
	if r.OccurredAt != nil {
		input.OccurredAt = *r.OccurredAt
	}
	return input, nil
}

// DonationRecord credits a donation to a farm vault.
func DonationRecord(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		var payload donationRecordRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.RecordDonation(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, ledgerEntryResponseFromModel(entry))
	}
}

type ledgerEntryResponse struct {
	ID               uuid.UUID             `json:"id"`
	FarmID           uuid.UUID             `json:"farm_id"`
	Seq              int64                 `json:"seq"`
	Type             enums.LedgerEntryType `json:"type"`
	TokenAmount      decimal.Decimal       `json:"token_amount"`
	FiatAmount       decimal.Decimal       `json:"fiat_amount"`
	BalanceAfter     decimal.Decimal       `json:"balance_after"`
	TransactionHash  string                `json:"transaction_hash,omitempty"`
	CounterpartyName string                `json:"counterparty_name,omitempty"`
	OccurredAt       time.Time             `json:"occurred_at"`
	CreatedAt        time.Time             `json:"created_at"`
}

func ledgerEntryResponseFromModel(m *models.VaultLedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:               m.ID,
		FarmID:           m.FarmID,
		Seq:              m.Seq,
		Type:             m.Type,
		TokenAmount:      m.TokenAmount,
		FiatAmount:       m.FiatAmount,
		BalanceAfter:     m.BalanceAfter,
		TransactionHash:  m.TransactionHash,
		CounterpartyName: m.CounterpartyName,
		OccurredAt:       m.OccurredAt,
		CreatedAt:        m.CreatedAt,
	}
}
