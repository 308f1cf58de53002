package enums

import "slices"

// DeliveryMethod is how the buyer receives an order.
type DeliveryMethod string

const (
	DeliveryPickup            DeliveryMethod = "pickup"
	DeliveryHomeDelivery      DeliveryMethod = "homeDelivery"
	DeliveryShipping          DeliveryMethod = "shipping"
	DeliveryArrangeWithSeller DeliveryMethod = "arrangeWithSeller"
)

var validDeliveryMethods = []DeliveryMethod{
	DeliveryPickup,
	DeliveryHomeDelivery,
	DeliveryShipping,
	DeliveryArrangeWithSeller,
}

// DeliveryMethods returns the known methods in display order.
func DeliveryMethods() []DeliveryMethod {
	out := make([]DeliveryMethod, len(validDeliveryMethods))
	copy(out, validDeliveryMethods)
	return out
}

func (d DeliveryMethod) String() string {
	return string(d)
}

func (d DeliveryMethod) IsValid() bool {
	return slices.Contains(validDeliveryMethods, d)
}

// RequiresShippingAddress reports whether orders with this method must carry
// a shipping address.
func (d DeliveryMethod) RequiresShippingAddress() bool {
	return d != DeliveryPickup && d != DeliveryArrangeWithSeller
}

// Label is the buyer-facing name used in error messages.
func (d DeliveryMethod) Label() string {
	switch d {
	case DeliveryPickup:
		return "Recoger en tienda"
	case DeliveryHomeDelivery:
		return "Entrega a domicilio"
	case DeliveryShipping:
		return "Envío por paquetería"
	case DeliveryArrangeWithSeller:
		return "Acordar con el vendedor"
	default:
		return string(d)
	}
}

func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	return parse(validDeliveryMethods, "delivery method", value)
}
