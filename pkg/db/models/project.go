package models

import (
	"time"

	"github.com/google/uuid"
)

// Project groups reservations under one client engagement. Moving a
// project translates every attached reservation window by the same delta.
type Project struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ClientRef   string    `gorm:"column:client_ref;not null"`
	Notes       *string   `gorm:"column:notes"`
	WindowStart time.Time `gorm:"column:window_start;not null"`
	WindowEnd   time.Time `gorm:"column:window_end;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
