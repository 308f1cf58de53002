package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// UserSnapshot is the buyer profile copied into the order at write time.
// Later profile edits never touch it.
type UserSnapshot struct {
	UID       string `json:"uid"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// OrderItem is a line item after server-side pricing.
type OrderItem struct {
	ProductID   uuid.UUID       `json:"productId"`
	VariantID   *string         `json:"variantId,omitempty"`
	ProductName string          `json:"productName"`
	SKU         string          `json:"sku,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

type OrderTotals struct {
	Subtotal      decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	TaxAmount     decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2);not null" json:"taxAmount"`
	TaxPercentage decimal.Decimal `gorm:"column:tax_percentage;type:numeric(5,2);not null" json:"taxPercentage"`
	ShippingCost  decimal.Decimal `gorm:"column:shipping_cost;type:numeric(12,2);not null" json:"shippingCost"`
	Total         decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	ItemCount     int             `gorm:"column:item_count;not null" json:"itemCount"`
}

// Order is written exactly once per committed checkout.
type Order struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     int64                `gorm:"column:order_number;not null;uniqueIndex"`
	UserID          uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	UserData        UserSnapshot         `gorm:"column:user_data;type:jsonb;serializer:json;not null"`
	Items           []OrderItem          `gorm:"column:items;type:jsonb;serializer:json;not null"`
	Totals          OrderTotals          `gorm:"embedded"`
	Status          enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	DeliveryMethod  enums.DeliveryMethod `gorm:"column:delivery_method;type:text;not null"`
	ShippingAddress *types.Address       `gorm:"column:shipping_address;type:jsonb"`
	BillingAddress  *types.Address       `gorm:"column:billing_address;type:jsonb"`
	PaymentMethod   string               `gorm:"column:payment_method;not null"`
	Notes           *string              `gorm:"column:notes"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
