package enums

import "fmt"

// LedgerEntryType maps to the ledger_entry_type_enum enum in Postgres.
type LedgerEntryType string

const (
	LedgerEntryTypeDonation   LedgerEntryType = "DONATION"
	LedgerEntryTypeSettlement LedgerEntryType = "SETTLEMENT"
	LedgerEntryTypeWithdrawal LedgerEntryType = "WITHDRAWAL"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeDonation,
	LedgerEntryTypeSettlement,
	LedgerEntryTypeWithdrawal,
}

// IsValid reports whether the value matches the canonical ledger entry enum.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsDebit reports whether entries of this type reduce the vault balance.
func (t LedgerEntryType) IsDebit() bool {
	return t == LedgerEntryTypeSettlement || t == LedgerEntryTypeWithdrawal
}

// ParseLedgerEntryType converts raw input into LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
