package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	JobStockReconcile = "stock-reconcile"

	defaultReconcileBatch = 200
)

type catalogStore interface {
	ListAfter(ctx context.Context, after uuid.UUID, limit int) ([]models.Product, error)
	ApplyStockMutation(ctx context.Context, m pricing.StockMutation) error
}

// StockReconcile rewrites the product-level stock of variant products whose
// stored total drifted from the sum of their counted variants. Writes go
// through the same versioned update orders use, so a concurrent checkout
// wins and the product is picked up again next cycle.
type StockReconcile struct {
	logg  *logger.Logger
	store catalogStore
	batch int
}

func NewStockReconcile(logg *logger.Logger, store catalogStore, batch int) (*StockReconcile, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if store == nil {
		return nil, errors.New("product store required")
	}
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &StockReconcile{logg: logg, store: store, batch: batch}, nil
}

func (j *StockReconcile) Name() string { return JobStockReconcile }

func (j *StockReconcile) Run(ctx context.Context) (int64, error) {
	var fixed int64
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		page, err := j.store.ListAfter(ctx, after, j.batch)
		if err != nil {
			return fixed, fmt.Errorf("list products after %s: %w", after, err)
		}
		for _, p := range page {
			ok, err := j.reconcile(ctx, p)
			if err != nil {
				return fixed, err
			}
			if ok {
				fixed++
			}
		}
		if len(page) < j.batch {
			return fixed, nil
		}
		after = page[len(page)-1].ID
	}
}

func (j *StockReconcile) reconcile(ctx context.Context, p models.Product) (bool, error) {
	if len(p.Variants) == 0 {
		return false, nil
	}
	want := pricing.AggregateStock(p.Variants)
	if want == p.Stock {
		return false, nil
	}

	err := j.store.ApplyStockMutation(ctx, pricing.StockMutation{
		ProductID: p.ID,
		Version:   p.Version,
		Stock:     want,
	})
	switch {
	case errors.Is(err, product.ErrStockConflict):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("reconcile product %s: %w", p.ID, err)
	}

	j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
		"product_id": p.ID.String(),
		"stored":     p.Stock,
		"computed":   want,
	}), "product stock drift corrected")
	return true, nil
}
