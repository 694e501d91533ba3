package enums

import "fmt"

// ExpenseCategory is the fixed set of spending categories a receipt may claim.
type ExpenseCategory string

const (
	ExpenseCategoryFeed      ExpenseCategory = "feed_nutrition"
	ExpenseCategoryHoofCare  ExpenseCategory = "hoof_care"
	ExpenseCategoryMedical   ExpenseCategory = "medical"
	ExpenseCategoryFacility  ExpenseCategory = "facility"
	ExpenseCategoryExercise  ExpenseCategory = "exercise_rehab"
	ExpenseCategoryTransport ExpenseCategory = "transport"
)

var validExpenseCategories = []ExpenseCategory{
	ExpenseCategoryFeed,
	ExpenseCategoryHoofCare,
	ExpenseCategoryMedical,
	ExpenseCategoryFacility,
	ExpenseCategoryExercise,
	ExpenseCategoryTransport,
}

// IsValid reports whether the value is one of the six fixed categories.
func (c ExpenseCategory) IsValid() bool {
	for _, candidate := range validExpenseCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseExpenseCategory converts raw input into ExpenseCategory.
func ParseExpenseCategory(value string) (ExpenseCategory, error) {
	for _, candidate := range validExpenseCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid expense category %q", value)
}

// ExpenseCategories returns the canonical category list in display order.
func ExpenseCategories() []ExpenseCategory {
	out := make([]ExpenseCategory, len(validExpenseCategories))
	copy(out, validExpenseCategories)
	return out
}
