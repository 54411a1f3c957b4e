package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/pkg/enums"
)

// Bundle is a named collection of components reserved as one unit.
type Bundle struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Name       string            `gorm:"column:name;not null"`
	IsActive   bool              `gorm:"column:is_active;not null;default:true"`
	Components []BundleComponent `gorm:"foreignKey:BundleID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// BundleComponent links a bundle to one component with its multiplier.
// Components may reference nested bundles; cycles are rejected at
// expansion time.
type BundleComponent struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BundleID      uuid.UUID         `gorm:"column:bundle_id;type:uuid;not null;index:idx_bundle_components_bundle"`
	ComponentType enums.SubjectType `gorm:"column:component_type;type:subject_type_enum;not null"`
	ComponentID   uuid.UUID         `gorm:"column:component_id;type:uuid;not null"`
	Multiplier    int               `gorm:"column:multiplier;not null;default:1"`
}
