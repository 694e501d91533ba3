package enums

import "fmt"

// PhotoAngle maps to the photo_angle_enum enum in Postgres. A condition-photo
// batch requires all four angles.
type PhotoAngle string

const (
	PhotoAngleFront  PhotoAngle = "front"
	PhotoAngleSide   PhotoAngle = "side"
	PhotoAngleBack   PhotoAngle = "back"
	PhotoAngleStable PhotoAngle = "stable"
)

var validPhotoAngles = []PhotoAngle{
	PhotoAngleFront,
	PhotoAngleSide,
	PhotoAngleBack,
	PhotoAngleStable,
}

// IsValid reports whether the value matches the canonical photo angle enum.
func (a PhotoAngle) IsValid() bool {
	for _, candidate := range validPhotoAngles {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParsePhotoAngle converts raw input into PhotoAngle.
func ParsePhotoAngle(value string) (PhotoAngle, error) {
	for _, candidate := range validPhotoAngles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid photo angle %q", value)
}

// PhotoAngles returns the full required-angle list.
func PhotoAngles() []PhotoAngle {
	out := make([]PhotoAngle, len(validPhotoAngles))
	copy(out, validPhotoAngles)
	return out
}
