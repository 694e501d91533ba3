package enums

import "fmt"

// TrustCategory maps to the trust_category_enum enum in Postgres.
type TrustCategory string

const (
	TrustCategoryFarmPhoto   TrustCategory = "farm_photo"
	TrustCategoryHorsePhoto  TrustCategory = "horse_photo"
	TrustCategoryReceipt     TrustCategory = "receipt"
	TrustCategoryNotUploaded TrustCategory = "not_uploaded"
)

var validTrustCategories = []TrustCategory{
	TrustCategoryFarmPhoto,
	TrustCategoryHorsePhoto,
	TrustCategoryReceipt,
	TrustCategoryNotUploaded,
}

// IsValid reports whether the value matches the canonical trust category enum.
func (c TrustCategory) IsValid() bool {
	for _, candidate := range validTrustCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseTrustCategory converts raw input into TrustCategory.
func ParseTrustCategory(value string) (TrustCategory, error) {
	for _, candidate := range validTrustCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid trust category %q", value)
}
