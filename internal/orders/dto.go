package orders

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemInput is a client-submitted line item. Every number is re-derived
// before it is trusted.
type ItemInput struct {
	ProductID   uuid.UUID
	VariantID   *string
	ProductName string
	SKU         *string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// TotalsInput are the client-computed order totals.
type TotalsInput struct {
	Subtotal      decimal.Decimal
	TaxAmount     decimal.Decimal
	TaxPercentage decimal.Decimal
	ShippingCost  decimal.Decimal
	Total         decimal.Decimal
	ItemCount     int
}

// CreateOrderInput is a schema-valid order request.
type CreateOrderInput struct {
	UserID          uuid.UUID
	Items           []ItemInput
	ShippingAddress *types.Address
	BillingAddress  *types.Address
	DeliveryMethod  enums.DeliveryMethod
	PaymentMethod   string
	Notes           *string
	Totals          TotalsInput
}

// CreateOrderResult is returned for a committed order.
type CreateOrderResult struct {
	OrderID     uuid.UUID
	OrderNumber int64
	Order       *models.Order
	Attempts    int
}
