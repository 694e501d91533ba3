package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marondal/donation-engine/pkg/enums"
)

// DonationRecordedEvent signals a donation credited to a farm vault.
type DonationRecordedEvent struct {
	FarmID        uuid.UUID       `json:"farm_id"`
	LedgerEntryID uuid.UUID       `json:"ledger_entry_id"`
	Seq           int64           `json:"seq"`
	TokenAmount   decimal.Decimal `json:"token_amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	DonorName     string          `json:"donor_name,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// ReceiptVerifiedEvent is emitted when the verification pipeline reaches a
// verdict on a submitted receipt.
type ReceiptVerifiedEvent struct {
	ReceiptID     uuid.UUID           `json:"receipt_id"`
	FarmID        uuid.UUID           `json:"farm_id"`
	Status        enums.ReceiptStatus `json:"status"`
	VerdictReason string              `json:"verdict_reason,omitempty"`
	AmountMatch   bool                `json:"amount_match"`
}

// SettlementCompletedEvent surfaces the full settlement chain for a receipt.
type SettlementCompletedEvent struct {
	ReceiptID     uuid.UUID       `json:"receipt_id"`
	FarmID        uuid.UUID       `json:"farm_id"`
	LedgerEntryID uuid.UUID       `json:"ledger_entry_id"`
	TokenAmount   decimal.Decimal `json:"token_amount"`
	FiatAmount    decimal.Decimal `json:"fiat_amount"`
	PayoutTxRef   string          `json:"payout_tx_ref"`
	BurnTxHash    string          `json:"burn_tx_hash"`
	SettledAt     time.Time       `json:"settled_at"`
}

// SettlementPartialFailureEvent reports a settlement that stopped midway,
// naming the step operators need to look at.
type SettlementPartialFailureEvent struct {
	ReceiptID  uuid.UUID            `json:"receipt_id"`
	FarmID     uuid.UUID            `json:"farm_id"`
	FailedStep enums.SettlementStep `json:"failed_step"`
	Error      string               `json:"error"`
}

// TrustScoreDeltaAppliedEvent records a trust score adjustment.
type TrustScoreDeltaAppliedEvent struct {
	FarmID     uuid.UUID           `json:"farm_id"`
	EventID    uuid.UUID           `json:"event_id"`
	Category   enums.TrustCategory `json:"category"`
	Delta      int                 `json:"delta"`
	ScoreAfter int                 `json:"score_after"`
}

// PhotoBatchFullyValidatedEvent fires when all four angles of a monthly
// batch pass provenance checks.
type PhotoBatchFullyValidatedEvent struct {
	FarmID uuid.UUID `json:"farm_id"`
	Month  time.Time `json:"month"`
}

// MissingUploadPenaltyPostedEvent fires when a farm skipped its monthly
// uploads and the penalty delta was applied.
type MissingUploadPenaltyPostedEvent struct {
	FarmID     uuid.UUID `json:"farm_id"`
	Month      time.Time `json:"month"`
	ScoreAfter int       `json:"score_after"`
}
