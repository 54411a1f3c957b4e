package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/pkg/enums"
)

// RecurringObligation is a time-triggered duty (recurring project
// creation, lease rollover) advanced by the scheduler. Spec holds the
// canonical 5-field cron pattern; Template carries the handler payload.
type RecurringObligation struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Kind        enums.ObligationKind   `gorm:"column:kind;type:obligation_kind_enum;not null"`
	Spec        string                 `gorm:"column:spec;not null"`
	Status      enums.ObligationStatus `gorm:"column:status;type:obligation_status_enum;not null;default:active"`
	NextFireAt  time.Time              `gorm:"column:next_fire_at;not null;index:idx_obligations_due"`
	ClaimedBy   *string                `gorm:"column:claimed_by"`
	ClaimedAt   *time.Time             `gorm:"column:claimed_at"`
	Attempts    int                    `gorm:"column:attempts;not null;default:0"`
	MaxAttempts int                    `gorm:"column:max_attempts;not null;default:5"`
	LastError   *string                `gorm:"column:last_error"`
	Template    json.RawMessage        `gorm:"column:template;type:jsonb"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
