package payloads

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// OrderCreatedEvent carries everything the post-commit effects need so the
// worker never reads the order back.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID            `json:"orderId"`
	OrderNumber     int64                `json:"orderNumber"`
	UserID          uuid.UUID            `json:"userId"`
	Customer        models.UserSnapshot  `json:"customer"`
	Items           []models.OrderItem   `json:"items"`
	Totals          models.OrderTotals   `json:"totals"`
	DeliveryMethod  enums.DeliveryMethod `json:"deliveryMethod"`
	PaymentMethod   string               `json:"paymentMethod"`
	ShippingAddress *types.Address       `json:"shippingAddress,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
}

// NewOrderCreatedEvent snapshots a freshly committed order.
func NewOrderCreatedEvent(order models.Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Customer:        order.UserData,
		Items:           order.Items,
		Totals:          order.Totals,
		DeliveryMethod:  order.DeliveryMethod,
		PaymentMethod:   order.PaymentMethod,
		ShippingAddress: order.ShippingAddress,
		CreatedAt:       order.CreatedAt,
	}
}

// Validate rejects payloads that cannot identify their order.
func (e OrderCreatedEvent) Validate() error {
	if e.OrderID == uuid.Nil {
		return errors.New("orderId is required")
	}
	return nil
}
