package enums

import "fmt"

// VerdictResult is the outcome of the receipt verification pipeline.
type VerdictResult string

const (
	VerdictEligible   VerdictResult = "ELIGIBLE"
	VerdictIneligible VerdictResult = "INELIGIBLE"
)

// IsValid reports whether the value is a known verdict.
func (v VerdictResult) IsValid() bool {
	return v == VerdictEligible || v == VerdictIneligible
}

// ParseVerdictResult converts raw input into VerdictResult. The oracle answers
// in Korean, so the hangul spellings are accepted alongside the enum values.
func ParseVerdictResult(value string) (VerdictResult, error) {
	switch value {
	case string(VerdictEligible), "적격", "eligible":
		return VerdictEligible, nil
	case string(VerdictIneligible), "부적격", "ineligible":
		return VerdictIneligible, nil
	}
	return "", fmt.Errorf("invalid verdict result %q", value)
}
