package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/pkg/enums"
)

// ScanMovement is one reconciled physical movement. Checkout movements
// reference the reservation they consumed; unplanned_out rows record
// overflow beyond what was reserved.
type ScanMovement struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TagCode       string              `gorm:"column:tag_code;not null;index:idx_scan_movements_tag"`
	ProjectID     uuid.UUID           `gorm:"column:project_id;type:uuid;not null;index:idx_scan_movements_project"`
	ItemID        *uuid.UUID          `gorm:"column:item_id;type:uuid"`
	BundleID      *uuid.UUID          `gorm:"column:bundle_id;type:uuid"`
	ReservationID *uuid.UUID          `gorm:"column:reservation_id;type:uuid"`
	Direction     enums.ScanDirection `gorm:"column:direction;type:scan_direction_enum;not null"`
	Type          enums.MovementType  `gorm:"column:type;type:movement_type_enum;not null"`
	Qty           int                 `gorm:"column:qty;not null"`
	ActorID       uuid.UUID           `gorm:"column:actor_id;type:uuid;not null"`
	RecordedAt    time.Time           `gorm:"column:recorded_at;not null"`
	ReturnedAt    *time.Time          `gorm:"column:returned_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}
