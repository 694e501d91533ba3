package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/marondal/donation-engine/pkg/enums"
)

// TrustScoreEvent is an append-only record of one score adjustment. Delta may
// be zero when an activity was registered but carried no score change, e.g. a
// receipt whose metadata did not match the submitting farm.
type TrustScoreEvent struct {
	ID       uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmID   uuid.UUID           `gorm:"column:farm_id;type:uuid;not null;index:idx_trust_score_events_farm_occurred"`
	Category enums.TrustCategory `gorm:"column:category;type:trust_category_enum;not null"`

	Delta      int `gorm:"column:delta;not null"`
	ScoreAfter int `gorm:"column:score_after;not null"`

	// SourceID references the receipt or photo batch that produced the event.
	SourceID *uuid.UUID `gorm:"column:source_id;type:uuid"`
	Reason   string     `gorm:"column:reason"`

	OccurredAt time.Time `gorm:"column:occurred_at;not null;index:idx_trust_score_events_farm_occurred"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
