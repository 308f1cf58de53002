// Package users reads buyer profiles for the order pipeline and keeps their
// purchase counters.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// ErrNotFound is returned when no user has the requested id.
var ErrNotFound = errors.New("user not found")

// profileColumns is everything an order snapshot reads.
var profileColumns = []string{"id", "email", "first_name", "last_name", "phone", "purchase_count"}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("user is required")
	}
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID loads the profile columns of one user.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Select(profileColumns).Where("id = ?", id).Take(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case err != nil:
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return &user, nil
}

// IncrementPurchaseCount records one more completed order for the user.
func (r *Repository) IncrementPurchaseCount(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("purchase_count", gorm.Expr("purchase_count + 1"))
	switch {
	case res.Error != nil:
		return res.Error
	case res.RowsAffected == 0:
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
