package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const orderCreatedMessage = "Orden creada exitosamente"

type orderItemRequest struct {
	ProductID   string   `json:"productId" validate:"required,uuid"`
	VariantID   *string  `json:"variantId,omitempty" validate:"omitempty,min=1,max=64"`
	ProductName string   `json:"productName" validate:"required,min=1,max=200"`
	SKU         *string  `json:"sku,omitempty" validate:"omitempty,max=64"`
	Quantity    int      `json:"quantity" validate:"required,min=1,max=1000"`
	UnitPrice   *float64 `json:"unitPrice" validate:"required,gte=0,lte=9999999.99,money"`
	TotalPrice  *float64 `json:"totalPrice" validate:"required,gte=0,lte=9999999.99,money"`
}

type orderTotalsRequest struct {
	Subtotal      *float64 `json:"subtotal" validate:"required,gte=0,lte=9999999.99,money"`
	TaxAmount     *float64 `json:"taxAmount" validate:"required,gte=0,lte=9999999.99,money"`
	TaxPercentage *float64 `json:"taxPercentage" validate:"required,gte=0,lte=100,money"`
	ShippingCost  *float64 `json:"shippingCost" validate:"required,gte=0,lte=9999999.99,money"`
	Total         *float64 `json:"total" validate:"required,gte=0,lte=9999999.99,money"`
	ItemCount     int      `json:"itemCount" validate:"required,min=1"`
}

type createOrderRequest struct {
	UserID          string             `json:"userId" validate:"required,uuid"`
	Items           []orderItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingAddress *types.Address     `json:"shippingAddress,omitempty"`
	BillingAddress  *types.Address     `json:"billingAddress,omitempty"`
	DeliveryMethod  string             `json:"deliveryMethod" validate:"required,oneof=pickup homeDelivery shipping arrangeWithSeller"`
	PaymentMethod   string             `json:"paymentMethod" validate:"required,min=1,max=50"`
	Notes           *string            `json:"notes,omitempty" validate:"omitempty,max=500"`
	Totals          orderTotalsRequest `json:"totals"`
}

type createOrderResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Message     string `json:"message"`
}

func init() {
	validators.RegisterStructRule(requireShippingAddress, createOrderRequest{})
}

func requireShippingAddress(sl validator.StructLevel) {
	req := sl.Current().Interface().(createOrderRequest)
	method := enums.DeliveryMethod(req.DeliveryMethod)
	if method.IsValid() && method.RequiresShippingAddress() && req.ShippingAddress == nil {
		sl.ReportError(req.ShippingAddress, "shippingAddress", "ShippingAddress", "required_shipping", "")
	}
}

// toInput converts a schema-valid request into service input.
func (req createOrderRequest) toInput() (orders.CreateOrderInput, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return orders.CreateOrderInput{}, err
	}
	method, err := enums.ParseDeliveryMethod(req.DeliveryMethod)
	if err != nil {
		return orders.CreateOrderInput{}, err
	}

	items := make([]orders.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return orders.CreateOrderInput{}, err
		}
		items = append(items, orders.ItemInput{
			ProductID:   productID,
			VariantID:   validators.SanitizeOptional(item.VariantID, 64),
			ProductName: validators.SanitizeString(item.ProductName, 200),
			SKU:         validators.SanitizeOptional(item.SKU, 64),
			Quantity:    item.Quantity,
			UnitPrice:   amount(item.UnitPrice),
			TotalPrice:  amount(item.TotalPrice),
		})
	}

	return orders.CreateOrderInput{
		UserID:          userID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		DeliveryMethod:  method,
		PaymentMethod:   validators.SanitizeString(req.PaymentMethod, 50),
		Notes:           validators.SanitizeOptional(req.Notes, 500),
		Totals: orders.TotalsInput{
			Subtotal:      amount(req.Totals.Subtotal),
			TaxAmount:     amount(req.Totals.TaxAmount),
			TaxPercentage: amount(req.Totals.TaxPercentage),
			ShippingCost:  amount(req.Totals.ShippingCost),
			Total:         amount(req.Totals.Total),
			ItemCount:     req.Totals.ItemCount,
		},
	}, nil
}

// amount converts a schema-checked money field; required already rejected nil.
func amount(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return money.FromFloat(*v)
}

// CreateOrder validates the request schema and commits the order.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Datos de la orden inválidos"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithUserID(ctx, input.UserID.String())
		}

		result, err := svc.CreateOrder(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusCreated, createOrderResponse{
			Success:     true,
			OrderID:     result.OrderID.String(),
			OrderNumber: strconv.FormatInt(result.OrderNumber, 10),
			Message:     orderCreatedMessage,
		})
	}
}
