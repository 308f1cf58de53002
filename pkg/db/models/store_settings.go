package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoreSettingsID is the primary key of the singleton settings row.
const StoreSettingsID = 1

type StoreSettings struct {
	ID                       int             `gorm:"column:id;primaryKey;autoIncrement:false"`
	StoreEnabled             bool            `gorm:"column:store_enabled;not null"`
	TaxEnabled               bool            `gorm:"column:tax_enabled;not null"`
	TaxPercentage            decimal.Decimal `gorm:"column:tax_percentage;type:numeric(5,2);not null;default:0"`
	PickupEnabled            bool            `gorm:"column:pickup_enabled;not null"`
	HomeDeliveryEnabled      bool            `gorm:"column:home_delivery_enabled;not null"`
	ShippingEnabled          bool            `gorm:"column:shipping_enabled;not null"`
	ArrangeWithSellerEnabled bool            `gorm:"column:arrange_with_seller_enabled;not null"`
	UpdatedAt                time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (StoreSettings) TableName() string {
	return "store_settings"
}
