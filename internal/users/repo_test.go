package users

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.User{}))
	return NewRepository(conn)
}

func TestFindByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := &models.User{Email: "ana@example.com", FirstName: "Ana", LastName: "Pérez"}
	require.NoError(t, repo.Create(ctx, user))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Ana", got.FirstName)
	require.Equal(t, "ana@example.com", got.Email)
	require.True(t, got.CreatedAt.IsZero(), "only profile columns are loaded")

	_, err = repo.FindByID(ctx, uuid.New())
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestIncrementPurchaseCount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := &models.User{Email: "ana@example.com", FirstName: "Ana", LastName: "Pérez"}
	require.NoError(t, repo.Create(ctx, user))

	require.NoError(t, repo.IncrementPurchaseCount(ctx, user.ID))
	require.NoError(t, repo.IncrementPurchaseCount(ctx, user.ID))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.PurchaseCount)

	require.ErrorIs(t, repo.IncrementPurchaseCount(ctx, uuid.New()), ErrNotFound)
	require.Error(t, repo.Create(ctx, nil))
}
