package enums

import "fmt"

// SettlementStep identifies which orchestration step a settlement reached.
type SettlementStep string

const (
	SettlementStepDebit      SettlementStep = "debit"
	SettlementStepWithdrawal SettlementStep = "withdrawal"
	SettlementStepBurn       SettlementStep = "burn"
)

var validSettlementSteps = []SettlementStep{
	SettlementStepDebit,
	SettlementStepWithdrawal,
	SettlementStepBurn,
}

// IsValid reports whether the value matches a known settlement step.
func (s SettlementStep) IsValid() bool {
	for _, candidate := range validSettlementSteps {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSettlementStep converts raw input into SettlementStep.
func ParseSettlementStep(value string) (SettlementStep, error) {
	for _, candidate := range validSettlementSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement step %q", value)
}
