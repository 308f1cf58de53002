package orders

import (
	"testing"

	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openSnapshot() settings.Snapshot {
	return settings.Snapshot{
		Tax: &settings.TaxSettings{TaxPercentage: dec("16"), Enabled: true},
		Delivery: &settings.DeliverySettings{StoreEnabled: true, Methods: map[enums.DeliveryMethod]bool{
			enums.DeliveryPickup:   true,
			enums.DeliveryShipping: true,
		}},
	}
}

func simpleProduct(stock int, price string) models.Product {
	return models.Product{ID: uuid.New(), Name: "Taza", SKU: "TZ-1", Price: dec(price), Stock: stock, Status: enums.ProductStatusActive, Version: 4}
}

func fieldsOf(errs []types.FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func messageFor(t *testing.T, errs []types.FieldError, field string) string {
	t.Helper()
	for _, e := range errs {
		if e.Field == field {
			return e.Message
		}
	}
	t.Fatalf("no error for %s in %v", field, errs)
	return ""
}

func TestValidateHappyPath(t *testing.T) {
	p := simpleProduct(10, "25.00")
	input := CreateOrderInput{
		DeliveryMethod: enums.DeliveryPickup,
		Items:          []ItemInput{{ProductID: p.ID, Quantity: 2, UnitPrice: dec("25"), TotalPrice: dec("50")}},
		Totals:         TotalsInput{Subtotal: dec("50"), TaxAmount: dec("8"), TaxPercentage: dec("16"), Total: dec("58"), ItemCount: 2},
	}

	v := Validate(input, map[uuid.UUID]models.Product{p.ID: p}, openSnapshot())
	require.True(t, v.OK(), "%v", v.Errors)
	require.Len(t, v.Mutations, 1)
	require.Equal(t, 8, v.Mutations[0].Stock)
	require.Equal(t, int64(4), v.Mutations[0].Version)
	require.Equal(t, "TZ-1", v.Items[0].SKU)
	require.True(t, v.Totals.Total.Equal(dec("58")))
	require.Equal(t, 2, v.Totals.ItemCount)
}

func TestValidateCollectsEveryError(t *testing.T) {
	p := simpleProduct(10, "25.00")
	missing := uuid.New()
	input := CreateOrderInput{
		DeliveryMethod: enums.DeliveryHomeDelivery,
		Items: []ItemInput{
			{ProductID: missing, ProductName: "Fantasma", Quantity: 1, UnitPrice: dec("1"), TotalPrice: dec("1")},
			{ProductID: p.ID, Quantity: 2, UnitPrice: dec("20"), TotalPrice: dec("40")},
		},
		Totals: TotalsInput{Subtotal: dec("41"), TaxAmount: dec("6.56"), TaxPercentage: dec("16"), Total: dec("47.56"), ItemCount: 2},
	}

	v := Validate(input, map[uuid.UUID]models.Product{p.ID: p}, openSnapshot())
	require.False(t, v.OK())
	require.ElementsMatch(t, []string{
		"deliveryMethod",
		"items[0].productId",
		"items[1].unitPrice",
		"items[1].totalPrice",
		"totals.subtotal",
		"totals.taxAmount",
		"totals.total",
		"totals.itemCount",
	}, fieldsOf(v.Errors))
	require.Contains(t, messageFor(t, v.Errors, "items[0].productId"), "Fantasma")
}

func TestValidatePriceTamperFlagsUnitPriceEvenWhenTotalsBalance(t *testing.T) {
	p := simpleProduct(10, "25.00")
	input := CreateOrderInput{
		DeliveryMethod: enums.DeliveryPickup,
		Items:          []ItemInput{{ProductID: p.ID, Quantity: 2, UnitPrice: dec("24.98"), TotalPrice: dec("50")}},
		Totals:         TotalsInput{Subtotal: dec("50"), TaxAmount: dec("8"), TaxPercentage: dec("16"), Total: dec("58"), ItemCount: 2},
	}

	v := Validate(input, map[uuid.UUID]models.Product{p.ID: p}, openSnapshot())
	require.Equal(t, []string{"items[0].unitPrice"}, fieldsOf(v.Errors))
}

func TestValidateVariantOversell(t *testing.T) {
	variantID := "red"
	p := models.Product{
		ID: uuid.New(), Name: "Playera", Price: dec("100"), Stock: 3, Status: enums.ProductStatusActive,
		Variants: []models.Variant{{ID: variantID, Name: "Roja", Price: dec("100"), Stock: 3, Status: enums.ProductStatusActive}},
	}
	input := CreateOrderInput{
		DeliveryMethod: enums.DeliveryPickup,
		Items:          []ItemInput{{ProductID: p.ID, VariantID: &variantID, Quantity: 5, UnitPrice: dec("100"), TotalPrice: dec("500")}},
		Totals:         TotalsInput{Subtotal: dec("500"), TaxAmount: dec("80"), TaxPercentage: dec("16"), Total: dec("580"), ItemCount: 5},
	}

	v := Validate(input, map[uuid.UUID]models.Product{p.ID: p}, openSnapshot())
	require.Equal(t, []string{"items[0].quantity"}, fieldsOf(v.Errors))
	require.Contains(t, v.Errors[0].Message, "Disponible: 3, solicitado: 5")
	require.Empty(t, v.Mutations)
}

func TestValidateDuplicateLinesShareStock(t *testing.T) {
	p := simpleProduct(3, "10")
	input := CreateOrderInput{
		DeliveryMethod: enums.DeliveryPickup,
		Items: []ItemInput{
			{ProductID: p.ID, Quantity: 2, UnitPrice: dec("10"), TotalPrice: dec("20")},
			{ProductID: p.ID, Quantity: 2, UnitPrice: dec("10"), TotalPrice: dec("20")},
		},
		Totals: TotalsInput{Subtotal: dec("40"), TaxAmount: dec("6.40"), TaxPercentage: dec("16"), Total: dec("46.40"), ItemCount: 4},
	}

	v := Validate(input, map[uuid.UUID]models.Product{p.ID: p}, openSnapshot())
	require.Equal(t, []string{"items[1].quantity"}, fieldsOf(v.Errors))
	require.Contains(t, v.Errors[0].Message, "Disponible: 1, solicitado: 2")
}

func TestValidateDuplicateLinesMergeIntoOneMutation(t *testing.T) {
	p := simpleProduct(5, "10")
	input := CreateOrderInput{
		DeliveryMethod: enums.DeliveryPickup,
		Items: []ItemInput{
			{ProductID: p.ID, Quantity: 2, UnitPrice: dec("10"), TotalPrice: dec("20")},
			{ProductID: p.ID, Quantity: 3, UnitPrice: dec("10"), TotalPrice: dec("30")},
		},
		Totals: TotalsInput{Subtotal: dec("50"), TaxAmount: dec("8"), TaxPercentage: dec("16"), Total: dec("58"), ItemCount: 5},
	}

	v := Validate(input, map[uuid.UUID]models.Product{p.ID: p}, openSnapshot())
	require.True(t, v.OK(), "%v", v.Errors)
	require.Len(t, v.Mutations, 1)
	require.Equal(t, 0, v.Mutations[0].Stock)
	require.Equal(t, int64(4), v.Mutations[0].Version)
}

func TestValidateInactiveProductAndMissingSettings(t *testing.T) {
	p := simpleProduct(5, "10")
	p.Status = enums.ProductStatusPaused
	input := CreateOrderInput{
		DeliveryMethod: enums.DeliveryPickup,
		Items:          []ItemInput{{ProductID: p.ID, Quantity: 1, UnitPrice: dec("10"), TotalPrice: dec("10")}},
		Totals:         TotalsInput{Subtotal: dec("0"), TaxAmount: dec("0"), TaxPercentage: dec("0"), Total: dec("0"), ItemCount: 1},
	}

	v := Validate(input, map[uuid.UUID]models.Product{p.ID: p}, settings.Snapshot{})
	require.ElementsMatch(t, []string{"deliveryMethod", "items[0].status", "totals.taxAmount"}, fieldsOf(v.Errors))
}

func TestValidateShippingCountsTowardTotal(t *testing.T) {
	p := simpleProduct(10, "25.00")
	input := CreateOrderInput{
		DeliveryMethod: enums.DeliveryShipping,
		Items:          []ItemInput{{ProductID: p.ID, Quantity: 2, UnitPrice: dec("25"), TotalPrice: dec("50")}},
		Totals:         TotalsInput{Subtotal: dec("50"), TaxAmount: dec("8"), TaxPercentage: dec("16"), ShippingCost: dec("99.50"), Total: dec("157.50"), ItemCount: 2},
	}

	v := Validate(input, map[uuid.UUID]models.Product{p.ID: p}, openSnapshot())
	require.True(t, v.OK(), "%v", v.Errors)
	require.True(t, v.Totals.Total.Equal(dec("157.50")))
}
