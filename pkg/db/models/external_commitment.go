package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stagecrew/rentline-backend/pkg/enums"
)

// ExternalCommitment fulfils part of a reservation from partner capacity.
// Its lifecycle mirrors the originating reservation; sync with the partner
// is best-effort and the local row stays authoritative until reconciled.
type ExternalCommitment struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	ReservationID uuid.UUID              `gorm:"column:reservation_id;type:uuid;not null;index:idx_external_commitments_reservation"`
	PartnerID     string                 `gorm:"column:partner_id;not null"`
	SlotID        uuid.UUID              `gorm:"column:slot_id;type:uuid;not null"`
	PartnerRef    *string                `gorm:"column:partner_ref"`
	ItemID        uuid.UUID              `gorm:"column:item_id;type:uuid;not null"`
	Qty           int                    `gorm:"column:qty;not null"`
	WindowStart   time.Time              `gorm:"column:window_start;not null"`
	WindowEnd     time.Time              `gorm:"column:window_end;not null"`
	UnitPrice     decimal.Decimal        `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Status        enums.CommitmentStatus `gorm:"column:status;type:commitment_status_enum;not null;default:pending"`
	SyncAttempts  int                    `gorm:"column:sync_attempts;not null;default:0"`
	LastError     *string                `gorm:"column:last_error"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
