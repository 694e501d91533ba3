package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/marondal/donation-engine/pkg/enums"
)

// ConditionPhoto is one angle of a monthly horse-condition batch. Provenance
// fields are copied out of the image EXIF block at submission time so the
// validation verdict stays reproducible even if the stored image is purged.
type ConditionPhoto struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmID uuid.UUID `gorm:"column:farm_id;type:uuid;not null;index:idx_condition_photos_farm_month"`

	// Month is the first day of the reporting month, UTC.
	Month time.Time        `gorm:"column:month;not null;index:idx_condition_photos_farm_month"`
	Angle enums.PhotoAngle `gorm:"column:angle;type:photo_angle_enum;not null"`

	ImageRef string `gorm:"column:image_ref;not null"`

	TakenAt   *time.Time `gorm:"column:taken_at"`
	Latitude  *float64   `gorm:"column:latitude"`
	Longitude *float64   `gorm:"column:longitude"`

	DistanceMeters *float64 `gorm:"column:distance_meters"`
	Valid          bool     `gorm:"column:valid;not null;default:false"`
	RejectReason   *string  `gorm:"column:reject_reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
