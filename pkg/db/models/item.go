package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a catalogue entry with a finite physical quantity. Only
// administrative operations mutate QuantityTotal.
type Item struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name          string          `gorm:"column:name;not null"`
	Kind          string          `gorm:"column:kind;not null"`
	QuantityTotal int             `gorm:"column:quantity_total;not null;default:0"`
	MinStock      int             `gorm:"column:min_stock;not null;default:0"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true"`
	DayRate       decimal.Decimal `gorm:"column:day_rate;type:numeric(12,2);not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
