package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/pkg/enums"
	"github.com/stagecrew/rentline-backend/pkg/types"
)

// Reservation holds qty units of a subject against a project over a
// closed window. Bundle reservations keep a parent row plus one component
// row per expanded item, linked through ParentID.
type Reservation struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	ProjectID   uuid.UUID              `gorm:"column:project_id;type:uuid;not null;index:idx_reservations_project"`
	SubjectType enums.SubjectType      `gorm:"column:subject_type;type:subject_type_enum;not null"`
	SubjectID   uuid.UUID              `gorm:"column:subject_id;type:uuid;not null;index:idx_reservations_subject_window,priority:1"`
	ParentID    *uuid.UUID             `gorm:"column:parent_id;type:uuid;index:idx_reservations_parent"`
	Qty         int                    `gorm:"column:qty;not null"`
	ConsumedQty int                    `gorm:"column:consumed_qty;not null;default:0"`
	WindowStart time.Time              `gorm:"column:window_start;not null;index:idx_reservations_subject_window,priority:2"`
	WindowEnd   time.Time              `gorm:"column:window_end;not null;index:idx_reservations_subject_window,priority:3"`
	Precision   enums.WindowPrecision  `gorm:"column:precision;type:window_precision_enum;not null;default:day"`
	State       enums.ReservationState `gorm:"column:state;type:reservation_state_enum;not null;default:tentative"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// Window materializes the stored endpoints as a types.Window.
func (r Reservation) Window() types.Window {
	return types.Window{Start: r.WindowStart, End: r.WindowEnd, Precision: r.Precision}
}

// SetWindow writes a types.Window back onto the stored endpoints.
func (r *Reservation) SetWindow(w types.Window) {
	r.WindowStart = w.Start
	r.WindowEnd = w.End
	r.Precision = w.Precision
}

// IsComponent reports whether the row was derived from a bundle parent.
func (r Reservation) IsComponent() bool {
	return r.ParentID != nil
}
