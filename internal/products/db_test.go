package product

import (
	"os"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.Product{}))
	return conn
}

func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("STOREFRONT_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("STOREFRONT_TEST_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	return conn
}
