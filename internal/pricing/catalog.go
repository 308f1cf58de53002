package pricing

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
)

// Catalog is a product in one of its two shapes. Only SimpleProduct and
// VariatedProduct implement it.
type Catalog interface {
	Model() models.Product
	// Resolve prices item against the current working copy.
	Resolve(item LineItem) (Resolution, *ResolveError)
	// Apply returns the working copy after mutation has been written.
	Apply(mutation StockMutation) Catalog
	isCatalog()
}

type SimpleProduct struct {
	product models.Product
}

type VariatedProduct struct {
	product models.Product
}

// FromModel picks the product shape once, when the row is loaded.
func FromModel(p models.Product) Catalog {
	if len(p.Variants) > 0 {
		return VariatedProduct{product: p}
	}
	return SimpleProduct{product: p}
}

func (s SimpleProduct) Model() models.Product { return s.product }

func (s SimpleProduct) Resolve(item LineItem) (Resolution, *ResolveError) {
	return ResolveSimpleStock(s.product, item)
}

func (s SimpleProduct) Apply(m StockMutation) Catalog {
	next := s.product
	next.Stock = m.Stock
	return SimpleProduct{product: next}
}

func (SimpleProduct) isCatalog() {}

func (v VariatedProduct) Model() models.Product { return v.product }

func (v VariatedProduct) Resolve(item LineItem) (Resolution, *ResolveError) {
	return ResolveVariantStock(v.product, item)
}

func (v VariatedProduct) Apply(m StockMutation) Catalog {
	next := v.product
	next.Stock = m.Stock
	next.Variants = m.Variants
	return VariatedProduct{product: next}
}

func (VariatedProduct) isCatalog() {}

// Purchasable reports whether the product itself may be ordered.
func Purchasable(c Catalog) bool {
	return c.Model().Status == enums.ProductStatusActive
}

// ID is a shorthand for the product id.
func ID(c Catalog) uuid.UUID {
	return c.Model().ID
}
