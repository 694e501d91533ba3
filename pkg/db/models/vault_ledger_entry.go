package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marondal/donation-engine/pkg/enums"
)

// VaultLedgerEntry records an immutable money movement against a farm vault.
// Seq is assigned under the per-farm append lock and breaks OccurredAt ties;
// BalanceAfter chains from the previous entry, so the latest entry is the
// authoritative current balance.
type VaultLedgerEntry struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmID           uuid.UUID             `gorm:"column:farm_id;type:uuid;not null;index:idx_vault_ledger_farm_seq,priority:1"`
	Seq              int64                 `gorm:"column:seq;not null;index:idx_vault_ledger_farm_seq,priority:2"`
	Type             enums.LedgerEntryType `gorm:"column:type;type:ledger_entry_type_enum;not null"`
	TokenAmount      decimal.Decimal       `gorm:"column:token_amount;type:numeric(20,4);not null"`
	FiatAmount       decimal.Decimal       `gorm:"column:fiat_amount;type:numeric(20,4);not null"`
	BalanceAfter     decimal.Decimal       `gorm:"column:balance_after;type:numeric(20,4);not null"`
	TransactionHash  string                `gorm:"column:transaction_hash"`
	CounterpartyName string                `gorm:"column:counterparty_name"`
	OccurredAt       time.Time             `gorm:"column:occurred_at;not null;index"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
}
