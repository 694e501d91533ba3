package enums

import "fmt"

// ReceiptStatus maps to the receipt_status_enum enum in Postgres.
type ReceiptStatus string

const (
	ReceiptStatusPending            ReceiptStatus = "PENDING"
	ReceiptStatusVerifiedEligible   ReceiptStatus = "VERIFIED_ELIGIBLE"
	ReceiptStatusVerifiedIneligible ReceiptStatus = "VERIFIED_INELIGIBLE"
	ReceiptStatusSettled            ReceiptStatus = "SETTLED"
	ReceiptStatusRejectedDuplicate  ReceiptStatus = "REJECTED_DUPLICATE"
)

var validReceiptStatuses = []ReceiptStatus{
	ReceiptStatusPending,
	ReceiptStatusVerifiedEligible,
	ReceiptStatusVerifiedIneligible,
	ReceiptStatusSettled,
	ReceiptStatusRejectedDuplicate,
}

// IsValid reports whether the value matches the canonical receipt status enum.
func (s ReceiptStatus) IsValid() bool {
	for _, candidate := range validReceiptStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from this status.
func (s ReceiptStatus) IsTerminal() bool {
	return s == ReceiptStatusSettled || s == ReceiptStatusRejectedDuplicate
}

// ParseReceiptStatus converts raw input into ReceiptStatus.
func ParseReceiptStatus(value string) (ReceiptStatus, error) {
	for _, candidate := range validReceiptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid receipt status %q", value)
}
