package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marondal/donation-engine/pkg/enums"
)

// InitialTrustScore is where every newly registered farm starts.
const InitialTrustScore = 50

// Farm is the join key for the ledger, receipt, and trust-score domains.
// VaultBalance mirrors the latest ledger entry's balance and is only written
// inside the same transaction that appends the entry; the ledger remains the
// source of truth.
type Farm struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID        uuid.UUID        `gorm:"column:owner_id;type:uuid;not null"`
	Name           string           `gorm:"column:name;not null"`
	Address        string           `gorm:"column:address;not null"`
	Latitude       float64          `gorm:"column:latitude;not null"`
	Longitude      float64          `gorm:"column:longitude;not null"`
	BankAccountRef string           `gorm:"column:bank_account_ref;not null"`
	VaultAddress   string           `gorm:"column:vault_address;not null"`
	Status         enums.FarmStatus `gorm:"column:status;type:farm_status_enum;not null;default:active"`
	VaultBalance   decimal.Decimal  `gorm:"column:vault_balance;type:numeric(20,4);not null;default:0"`
	MonthlyTarget  decimal.Decimal  `gorm:"column:monthly_target;type:numeric(20,4);not null;default:0"`
	MonthlyRaised  decimal.Decimal  `gorm:"column:monthly_raised;type:numeric(20,4);not null;default:0"`
	TrustScore     int              `gorm:"column:trust_score;not null;default:50"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
