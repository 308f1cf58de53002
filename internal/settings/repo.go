package settings

import (
	"context"
	"errors"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository reads the store_settings singleton.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Find returns nil when the singleton row does not exist.
func (r *Repository) Find(ctx context.Context) (*models.StoreSettings, error) {
	var row models.StoreSettings
	err := r.db.WithContext(ctx).First(&row, "id = ?", models.StoreSettingsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert writes the singleton row. Used by seeding and tests.
func (r *Repository) Upsert(ctx context.Context, row models.StoreSettings) error {
	row.ID = models.StoreSettingsID
	return r.db.WithContext(ctx).Save(&row).Error
}
