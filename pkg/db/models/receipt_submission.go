package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marondal/donation-engine/pkg/enums"
)

// ReceiptLineItem is a single purchased item extracted from the receipt.
type ReceiptLineItem struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// ReceiptSubmission is a farmer's claim that vault funds were spent on an
// approved category. The idempotency key is caller-generated and globally
// unique; settlement progress fields record which orchestration steps have
// already produced durable side effects so a retry never re-runs them.
type ReceiptSubmission struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IdempotencyKey string                `gorm:"column:idempotency_key;size:36;not null;uniqueIndex:uq_receipt_idempotency_key"`
	FarmID         uuid.UUID             `gorm:"column:farm_id;type:uuid;not null;index"`
	Category       enums.ExpenseCategory `gorm:"column:category;type:expense_category_enum;not null"`
	ClaimedAmount  decimal.Decimal       `gorm:"column:claimed_amount;type:numeric(20,4);not null"`

	StoreName    string `gorm:"column:store_name"`
	StoreAddress string `gorm:"column:store_address"`
	StorePhone   string `gorm:"column:store_phone"`

	LineItems      []ReceiptLineItem `gorm:"column:line_items;type:jsonb;serializer:json"`
	ApprovalNumber string            `gorm:"column:approval_number"`

	CertificationImageRef string `gorm:"column:certification_image_ref;not null"`
	ReceiptImageRef       string `gorm:"column:receipt_image_ref;not null"`

	Status enums.ReceiptStatus `gorm:"column:status;type:receipt_status_enum;not null;default:PENDING"`

	// Verification verdict, attached once the pipeline has run.
	VerdictResult   *enums.VerdictResult `gorm:"column:verdict_result;type:verdict_result_enum"`
	VerdictReason   *string              `gorm:"column:verdict_reason"`
	AmountMatch     *bool                `gorm:"column:amount_match"`
	ExtractedAmount *decimal.Decimal     `gorm:"column:extracted_amount;type:numeric(20,4)"`
	MatchedItems    []string             `gorm:"column:matched_items;type:jsonb;serializer:json"`

	// Settlement progress.
	DebitedAt     *time.Time            `gorm:"column:debited_at"`
	LedgerEntryID *uuid.UUID            `gorm:"column:ledger_entry_id;type:uuid"`
	PayoutTxRef   *string               `gorm:"column:payout_tx_ref"`
	BurnTxHash    *string               `gorm:"column:burn_tx_hash"`
	FailedStep    *enums.SettlementStep `gorm:"column:failed_step;type:settlement_step_enum"`
	SettledAt     *time.Time            `gorm:"column:settled_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
