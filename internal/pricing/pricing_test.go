package pricing

import (
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string {
	return &s
}

func TestApplyDynamicPricingTierSelection(t *testing.T) {
	tiers := []models.DynamicPriceRange{
		{MinQuantity: 10, Price: dec("6")},
		{MinQuantity: 1, Price: dec("10")},
		{MinQuantity: 5, Price: dec("8")},
	}
	base := dec("12")

	cases := map[int]string{7: "8", 3: "10", 10: "6", 50: "6", 0: "12"}
	for qty, want := range cases {
		got := ApplyDynamicPricing(base, true, tiers, qty)
		assert.Truef(t, got.Equal(dec(want)), "qty %d: want %s got %s", qty, want, got)
	}

	require.True(t, ApplyDynamicPricing(base, false, tiers, 7).Equal(base))
	require.True(t, ApplyDynamicPricing(base, true, nil, 7).Equal(base))
	// tiers keep their stored order
	require.Equal(t, 10, tiers[0].MinQuantity)
}

func TestApplyDynamicPricingBelowLowestTier(t *testing.T) {
	tiers := []models.DynamicPriceRange{{MinQuantity: 5, Price: dec("8")}}
	require.True(t, ApplyDynamicPricing(dec("10"), true, tiers, 2).Equal(dec("10")))
}

func TestAggregateStockExcludesArchived(t *testing.T) {
	variants := []models.Variant{
		{ID: "a", Status: enums.ProductStatusActive, Stock: 5},
		{ID: "b", Status: enums.ProductStatusArchived, Stock: 100},
		{ID: "c", Status: enums.ProductStatusPaused, Stock: 2},
	}
	require.Equal(t, 7, AggregateStock(variants))
	require.Equal(t, 5, AggregateStock(variants[:2]))
}

func variatedProduct() models.Product {
	return models.Product{
		ID:      uuid.New(),
		Name:    "Playera",
		SKU:     "PLY",
		Price:   dec("100"),
		Stock:   8,
		Status:  enums.ProductStatusActive,
		Version: 3,
		Variants: []models.Variant{
			{ID: "red", Name: "Roja", SKU: "PLY-R", Price: dec("120"), Stock: 3, Status: enums.ProductStatusActive},
			{ID: "blue", Name: "Azul", Price: dec("110"), Stock: 5, Status: enums.ProductStatusPaused},
			{ID: "old", Name: "Vieja", Price: dec("90"), Stock: 100, Status: enums.ProductStatusArchived},
		},
	}
}

func TestResolveVariantStock(t *testing.T) {
	p := variatedProduct()

	res, rerr := ResolveVariantStock(p, LineItem{ProductID: p.ID, VariantID: strPtr("red"), Quantity: 2})
	require.Nil(t, rerr)
	require.Equal(t, 3, res.AvailableStock)
	require.True(t, res.CorrectPrice.Equal(dec("120")))
	require.Equal(t, "PLY-R", res.SKU)
	require.Equal(t, int64(3), res.Mutation.Version)
	require.Equal(t, 1, res.Mutation.Variants[0].Stock)
	require.Equal(t, 6, res.Mutation.Stock)
	// source product untouched
	require.Equal(t, 3, p.Variants[0].Stock)
}

func TestResolveVariantStockErrors(t *testing.T) {
	p := variatedProduct()

	_, rerr := ResolveVariantStock(p, LineItem{Quantity: 1})
	require.NotNil(t, rerr)
	require.Equal(t, "variantId", rerr.Field)

	_, rerr = ResolveVariantStock(p, LineItem{VariantID: strPtr("green"), Quantity: 1})
	require.NotNil(t, rerr)
	require.Equal(t, "variantId", rerr.Field)

	_, rerr = ResolveVariantStock(p, LineItem{VariantID: strPtr("blue"), Quantity: 1})
	require.NotNil(t, rerr)
	require.Contains(t, rerr.Message, "no está disponible")

	_, rerr = ResolveVariantStock(p, LineItem{VariantID: strPtr("old"), Quantity: 1})
	require.NotNil(t, rerr)
}

func TestResolveSimpleStock(t *testing.T) {
	p := models.Product{
		ID:                uuid.New(),
		Name:              "Taza",
		SKU:               "TZ",
		Price:             dec("25"),
		Stock:             10,
		Status:            enums.ProductStatusActive,
		HasDynamicPricing: true,
		DynamicPrices:     []models.DynamicPriceRange{{MinQuantity: 6, Price: dec("20")}},
	}

	res, rerr := ResolveSimpleStock(p, LineItem{Quantity: 2})
	require.Nil(t, rerr)
	require.Equal(t, 10, res.AvailableStock)
	require.True(t, res.CorrectPrice.Equal(dec("25")))
	require.Equal(t, 8, res.Mutation.Stock)
	require.Nil(t, res.Mutation.Variants)

	res, rerr = ResolveSimpleStock(p, LineItem{Quantity: 6})
	require.Nil(t, rerr)
	require.True(t, res.CorrectPrice.Equal(dec("20")))

	_, rerr = ResolveSimpleStock(p, LineItem{VariantID: strPtr("x"), Quantity: 1})
	require.NotNil(t, rerr)
}

func TestCatalogDispatchAndApply(t *testing.T) {
	simple := FromModel(models.Product{ID: uuid.New(), Stock: 4, Status: enums.ProductStatusActive, Price: dec("1")})
	_, ok := simple.(SimpleProduct)
	require.True(t, ok)

	variated := FromModel(variatedProduct())
	_, ok = variated.(VariatedProduct)
	require.True(t, ok)

	res, rerr := variated.Resolve(LineItem{VariantID: strPtr("red"), Quantity: 2})
	require.Nil(t, rerr)
	variated = variated.Apply(res.Mutation)

	res, rerr = variated.Resolve(LineItem{VariantID: strPtr("red"), Quantity: 2})
	require.Nil(t, rerr)
	require.Equal(t, 1, res.AvailableStock)
	require.True(t, Purchasable(variated))
}
