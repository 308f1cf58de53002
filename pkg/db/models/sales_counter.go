package models

import (
	"time"

	"github.com/google/uuid"
)

// SalesCounter is a named running total maintained by post-commit effects.
type SalesCounter struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Count     int64     `gorm:"column:count;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// CountedOrder marks an order already added to the sales counters.
type CountedOrder struct {
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;primaryKey"`
	CountedAt time.Time `gorm:"column:counted_at;not null"`
}

func (CountedOrder) TableName() string { return "sales_counted_orders" }
