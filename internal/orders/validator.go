package orders

import (
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Validation is the outcome of checking one order against authoritative data.
// The order may be written only when Errors is empty.
type Validation struct {
	Errors    []types.FieldError
	Items     []models.OrderItem
	Mutations []pricing.StockMutation
	Totals    models.OrderTotals
}

// OK reports whether the order passed every check.
func (v Validation) OK() bool {
	return len(v.Errors) == 0
}

type validation struct {
	out     Validation
	working map[uuid.UUID]pricing.Catalog
	order   []uuid.UUID
	pending map[uuid.UUID]pricing.StockMutation
}

func (v *validation) fail(field, format string, args ...any) {
	v.out.Errors = append(v.out.Errors, types.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks every line item and the order totals against products read
// in the order transaction and the settings snapshot. All failures are
// collected. Later lines of the same product see the stock taken by earlier ones.
func Validate(input CreateOrderInput, products map[uuid.UUID]models.Product, snap settings.Snapshot) Validation {
	v := &validation{
		working: make(map[uuid.UUID]pricing.Catalog, len(products)),
		pending: make(map[uuid.UUID]pricing.StockMutation, len(products)),
	}
	for id, p := range products {
		v.working[id] = pricing.FromModel(p)
	}

	if ok, msg := settings.ValidateDeliveryMethod(input.DeliveryMethod, snap.Delivery); !ok {
		v.fail("deliveryMethod", "%s", msg)
	}

	subtotal := decimal.Zero
	itemCount := 0
	for i, item := range input.Items {
		itemCount += item.Quantity
		if line, ok := v.validateItem(i, item); ok {
			subtotal = subtotal.Add(line)
		}
	}
	subtotal = money.Round(subtotal)

	if !money.WithinTolerance(input.Totals.Subtotal, subtotal) {
		v.fail("totals.subtotal", "Subtotal incorrecto. Esperado: %s, recibido: %s",
			money.Format(subtotal), money.Format(input.Totals.Subtotal))
	}

	tax := settings.ValidateTaxAmount(subtotal, input.Totals.TaxAmount, input.Totals.TaxPercentage, snap.Tax)
	if !tax.Valid {
		v.fail(tax.Field, "%s", tax.Message)
	}

	expectedTotal := subtotal.Add(input.Totals.TaxAmount).Add(input.Totals.ShippingCost)
	if !money.WithinTolerance(input.Totals.Total, expectedTotal) {
		v.fail("totals.total", "Total incorrecto. Esperado: %s, recibido: %s",
			money.Format(expectedTotal), money.Format(input.Totals.Total))
	}

	if input.Totals.ItemCount != itemCount {
		v.fail("totals.itemCount", "Cantidad de artículos incorrecta. Esperado: %d, recibido: %d",
			itemCount, input.Totals.ItemCount)
	}

	for _, id := range v.order {
		v.out.Mutations = append(v.out.Mutations, v.pending[id])
	}

	taxAmount := tax.Expected
	taxPct := decimal.Zero
	if snap.Tax != nil {
		taxPct = snap.Tax.TaxPercentage
	}
	shipping := money.Round(input.Totals.ShippingCost)
	v.out.Totals = models.OrderTotals{
		Subtotal:      subtotal,
		TaxAmount:     taxAmount,
		TaxPercentage: taxPct,
		ShippingCost:  shipping,
		Total:         money.Round(subtotal.Add(taxAmount).Add(shipping)),
		ItemCount:     itemCount,
	}
	return v.out
}

// validateItem returns the authoritative line total and whether the item
// could be priced at all.
func (v *validation) validateItem(i int, item ItemInput) (decimal.Decimal, bool) {
	field := func(name string) string {
		return fmt.Sprintf("items[%d].%s", i, name)
	}

	catalog, ok := v.working[item.ProductID]
	if !ok {
		v.fail(field("productId"), "El producto %s no existe", displayName(item))
		return decimal.Zero, false
	}

	product := catalog.Model()
	if !pricing.Purchasable(catalog) {
		v.fail(field("status"), "El producto %s no está disponible", product.Name)
		return decimal.Zero, false
	}

	if item.Quantity < 1 {
		v.fail(field("quantity"), "La cantidad de %s debe ser al menos 1", product.Name)
		return decimal.Zero, false
	}

	res, rerr := catalog.Resolve(pricing.LineItem{
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Quantity:  item.Quantity,
	})
	if rerr != nil {
		v.fail(field(rerr.Field), "%s", rerr.Message)
		return decimal.Zero, false
	}

	stockOK := item.Quantity <= res.AvailableStock
	if !stockOK {
		v.fail(field("quantity"), "Stock insuficiente para %s. Disponible: %d, solicitado: %d",
			product.Name, res.AvailableStock, item.Quantity)
	}

	if !money.WithinTolerance(item.UnitPrice, res.CorrectPrice) {
		v.fail(field("unitPrice"), "El precio de %s cambió. Precio actual: %s, enviado: %s",
			product.Name, money.Format(res.CorrectPrice), money.Format(item.UnitPrice))
	}

	lineTotal := money.Round(res.CorrectPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	if !money.WithinTolerance(item.TotalPrice, lineTotal) {
		v.fail(field("totalPrice"), "Total incorrecto para %s. Esperado: %s, recibido: %s",
			product.Name, money.Format(lineTotal), money.Format(item.TotalPrice))
	}

	if stockOK {
		v.working[item.ProductID] = catalog.Apply(res.Mutation)
		if _, seen := v.pending[item.ProductID]; !seen {
			v.order = append(v.order, item.ProductID)
		}
		v.pending[item.ProductID] = res.Mutation
	}

	v.out.Items = append(v.out.Items, models.OrderItem{
		ProductID:   item.ProductID,
		VariantID:   item.VariantID,
		ProductName: product.Name,
		SKU:         res.SKU,
		Quantity:    item.Quantity,
		UnitPrice:   res.CorrectPrice,
		TotalPrice:  lineTotal,
	})
	return lineTotal, true
}

func displayName(item ItemInput) string {
	if item.ProductName != "" {
		return item.ProductName
	}
	return item.ProductID.String()
}
