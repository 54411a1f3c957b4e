package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/pkg/enums"
)

// Tag maps a physical label (barcode/RFID) to an item or bundle.
type Tag struct {
	ID         uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	Code       string        `gorm:"column:code;not null;uniqueIndex:ux_tags_code"`
	Kind       enums.TagKind `gorm:"column:kind;type:tag_kind_enum;not null"`
	SubjectID  uuid.UUID     `gorm:"column:subject_id;type:uuid;not null"`
	LastSeenAt *time.Time    `gorm:"column:last_seen_at"`
	CreatedAt  time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
