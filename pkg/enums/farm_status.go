package enums

import "fmt"

// FarmStatus maps to the farm_status_enum enum in Postgres. Farms are never
// hard-deleted; suspension is the only removal path.
type FarmStatus string

const (
	FarmStatusActive    FarmStatus = "active"
	FarmStatusSuspended FarmStatus = "suspended"
)

// IsValid reports whether the value matches the canonical farm status enum.
func (s FarmStatus) IsValid() bool {
	return s == FarmStatusActive || s == FarmStatusSuspended
}

// ParseFarmStatus converts raw input into FarmStatus.
func ParseFarmStatus(value string) (FarmStatus, error) {
	switch FarmStatus(value) {
	case FarmStatusActive:
		return FarmStatusActive, nil
	case FarmStatusSuspended:
		return FarmStatusSuspended, nil
	}
	return "", fmt.Errorf("invalid farm status %q", value)
}
