package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStockConflict means another transaction wrote the product after it was
// read. The whole order attempt must be retried.
var ErrStockConflict = errors.New("product stock changed concurrently")

const applyStockSQL = `UPDATE products SET stock = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`

const applyVariantStockSQL = `UPDATE products SET stock = ?, variants = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`

// Store is the product surface used inside the order transaction.
type Store interface {
	WithTx(tx *gorm.DB) Store
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	ApplyStockMutation(ctx context.Context, m pricing.StockMutation) error
}

// Repository reads products and applies order stock mutations.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) Store {
	if tx == nil {
		return r
	}
	return &Repository{db: tx, now: r.now}
}

// Create inserts a product. Used by seeding and tests.
func (r *Repository) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// FindByID returns gorm.ErrRecordNotFound when the product does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByIDs loads every existing product among ids. Missing ids are absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// ListAfter pages through the catalog in id order, starting after the given id.
func (r *Repository) ListAfter(ctx context.Context, after uuid.UUID, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("id > ?", after).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ApplyStockMutation writes the new stock only when the product still has the
// version it was read at.
func (r *Repository) ApplyStockMutation(ctx context.Context, m pricing.StockMutation) error {
	if m.Stock < 0 {
		return fmt.Errorf("product %s: negative stock %d", m.ProductID, m.Stock)
	}

	now := r.now().UTC()
	var res *gorm.DB
	if m.Variants != nil {
		payload, err := json.Marshal(m.Variants)
		if err != nil {
			return fmt.Errorf("encode variants: %w", err)
		}
		res = r.db.WithContext(ctx).Exec(applyVariantStockSQL, m.Stock, string(payload), now, m.ProductID, m.Version)
	} else {
		res = r.db.WithContext(ctx).Exec(applyStockSQL, m.Stock, now, m.ProductID, m.Version)
	}

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %s at version %d: %w", m.ProductID, m.Version, ErrStockConflict)
	}
	return nil
}
