package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stagecrew/rentline-backend/pkg/enums"
)

// PartnerSlot is sub-rental capacity advertised by a partner, synced
// locally so shortage fallback never blocks on partner I/O.
type PartnerSlot struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	PartnerID string                  `gorm:"column:partner_id;not null"`
	ItemKind  string                  `gorm:"column:item_kind;not null;index:idx_partner_slots_kind_window,priority:1"`
	Qty       int                     `gorm:"column:qty;not null"`
	ValidFrom time.Time               `gorm:"column:valid_from;not null;index:idx_partner_slots_kind_window,priority:2"`
	ValidTo   time.Time               `gorm:"column:valid_to;not null;index:idx_partner_slots_kind_window,priority:3"`
	UnitPrice decimal.Decimal         `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Status    enums.PartnerSlotStatus `gorm:"column:status;type:partner_slot_status_enum;not null;default:open"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
