// Package pricing resolves the authoritative unit price and available stock of
// a line item and produces the stock write that would fulfil it.
package pricing

import (
	"sort"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is the part of a requested order line the resolver needs.
type LineItem struct {
	ProductID uuid.UUID
	VariantID *string
	Quantity  int
}

// StockMutation is the write that fulfils one or more line items of a product.
// Variants is nil for simple products and the full replacement slice otherwise.
type StockMutation struct {
	ProductID uuid.UUID
	Version   int64
	Stock     int
	Variants  []models.Variant
}

// Resolution is the authoritative view of one line item.
type Resolution struct {
	AvailableStock int
	CorrectPrice   decimal.Decimal
	SKU            string
	Mutation       StockMutation
}

// ResolveError names the offending line item field relative to the item.
type ResolveError struct {
	Field   string
	Message string
}

func (e *ResolveError) Error() string {
	return e.Field + ": " + e.Message
}

// ApplyDynamicPricing returns the price of the tier with the largest
// minQuantity not above quantity, or basePrice when no tier applies.
func ApplyDynamicPricing(basePrice decimal.Decimal, enabled bool, tiers []models.DynamicPriceRange, quantity int) decimal.Decimal {
	if !enabled || len(tiers) == 0 {
		return basePrice
	}

	sorted := make([]models.DynamicPriceRange, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinQuantity > sorted[j].MinQuantity
	})

	for _, tier := range sorted {
		if tier.MinQuantity <= quantity {
			return tier.Price
		}
	}
	return basePrice
}

// AggregateStock sums the stock of variants that count toward the product total.
func AggregateStock(variants []models.Variant) int {
	total := 0
	for _, v := range variants {
		if v.Status.CountsTowardStock() {
			total += v.Stock
		}
	}
	return total
}

// ResolveVariantStock resolves a line item against one variant of product.
func ResolveVariantStock(product models.Product, item LineItem) (Resolution, *ResolveError) {
	if item.VariantID == nil || *item.VariantID == "" {
		return Resolution{}, &ResolveError{Field: "variantId", Message: "Debes seleccionar una variante de " + product.Name}
	}

	idx := -1
	for i := range product.Variants {
		if product.Variants[i].ID == *item.VariantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Resolution{}, &ResolveError{Field: "variantId", Message: "La variante seleccionada de " + product.Name + " no existe"}
	}

	variant := product.Variants[idx]
	if variant.Status != enums.ProductStatusActive {
		return Resolution{}, &ResolveError{Field: "variantId", Message: "La variante " + variant.Name + " de " + product.Name + " no está disponible"}
	}

	next := make([]models.Variant, len(product.Variants))
	copy(next, product.Variants)
	next[idx].Stock -= item.Quantity

	sku := variant.SKU
	if sku == "" {
		sku = product.SKU
	}

	return Resolution{
		AvailableStock: variant.Stock,
		CorrectPrice:   ApplyDynamicPricing(variant.Price, variant.HasDynamicPricing, variant.DynamicPrices, item.Quantity),
		SKU:            sku,
		Mutation: StockMutation{
			ProductID: product.ID,
			Version:   product.Version,
			Stock:     AggregateStock(next),
			Variants:  next,
		},
	}, nil
}

// ResolveSimpleStock resolves a line item against a product without variants.
func ResolveSimpleStock(product models.Product, item LineItem) (Resolution, *ResolveError) {
	if item.VariantID != nil && *item.VariantID != "" {
		return Resolution{}, &ResolveError{Field: "variantId", Message: product.Name + " no tiene variantes"}
	}
	return Resolution{
		AvailableStock: product.Stock,
		CorrectPrice:   ApplyDynamicPricing(product.Price, product.HasDynamicPricing, product.DynamicPrices, item.Quantity),
		SKU:            product.SKU,
		Mutation: StockMutation{
			ProductID: product.ID,
			Version:   product.Version,
			Stock:     product.Stock - item.Quantity,
		},
	}, nil
}
