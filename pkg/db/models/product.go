package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// DynamicPriceRange is one quantity tier. Tiers are stored unordered.
type DynamicPriceRange struct {
	MinQuantity int             `json:"minQuantity"`
	Price       decimal.Decimal `json:"price"`
}

// Variant lives inside the product row; its ID is unique within the parent only.
type Variant struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	SKU               string              `json:"sku,omitempty"`
	ColorHex          string              `json:"colorHex,omitempty"`
	Price             decimal.Decimal     `json:"price"`
	Stock             int                 `json:"stock"`
	Status            enums.ProductStatus `json:"status"`
	HasDynamicPricing bool                `json:"hasDynamicPricing,omitempty"`
	DynamicPrices     []DynamicPriceRange `json:"dynamicPrices,omitempty"`
}

// Product is the catalog entry the order pipeline reads and decrements.
// Version increases on every stock write and guards concurrent checkouts.
type Product struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name              string              `gorm:"column:name;not null"`
	SKU               string              `gorm:"column:sku;not null;default:''"`
	Price             decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	Stock             int                 `gorm:"column:stock;not null;default:0"`
	Status            enums.ProductStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CategoryID        *uuid.UUID          `gorm:"column:category_id;type:uuid"`
	HasDynamicPricing bool                `gorm:"column:has_dynamic_pricing;not null;default:false"`
	DynamicPrices     []DynamicPriceRange `gorm:"column:dynamic_prices;type:jsonb;serializer:json"`
	Variants          []Variant           `gorm:"column:variants;type:jsonb;serializer:json"`
	Version           int64               `gorm:"column:version;not null;default:0"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
