package enums

import "slices"

// OrderStatus tracks the lifecycle of a committed order. Only pending is
// written by the order pipeline; later states belong to order management.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) IsValid() bool {
	return slices.Contains(validOrderStatuses, s)
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse(validOrderStatuses, "order status", value)
}
