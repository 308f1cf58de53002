package settings

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestReader(t *testing.T) (*Reader, *Repository) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.StoreSettings{}))

	repo := NewRepository(conn)
	reader, err := NewReader(repo)
	require.NoError(t, err)
	return reader, repo
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLoadReturnsNilWhenMissing(t *testing.T) {
	reader, _ := newTestReader(t)
	ctx := context.Background()

	tax, err := reader.LoadTaxSettings(ctx)
	require.NoError(t, err)
	require.Nil(t, tax)

	delivery, err := reader.LoadDeliverySettings(ctx)
	require.NoError(t, err)
	require.Nil(t, delivery)
}

func TestLoadReadsSingleton(t *testing.T) {
	reader, repo := newTestReader(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, models.StoreSettings{
		StoreEnabled:    true,
		TaxEnabled:      true,
		TaxPercentage:   dec("16"),
		PickupEnabled:   true,
		ShippingEnabled: true,
	}))

	snap, err := reader.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Tax)
	require.True(t, snap.Tax.Enabled)
	require.True(t, snap.Tax.TaxPercentage.Equal(dec("16")))
	require.Equal(t, []enums.DeliveryMethod{enums.DeliveryPickup, enums.DeliveryShipping}, snap.Delivery.Enabled())
}

func TestLoadTreatsOutOfRangeTaxAsMissing(t *testing.T) {
	reader, repo := newTestReader(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, models.StoreSettings{StoreEnabled: true, TaxPercentage: dec("120")}))

	tax, err := reader.LoadTaxSettings(ctx)
	require.NoError(t, err)
	require.Nil(t, tax)
}

func TestValidateDeliveryMethodFailsClosed(t *testing.T) {
	for _, m := range enums.DeliveryMethods() {
		ok, msg := ValidateDeliveryMethod(m, nil)
		require.False(t, ok)
		require.NotEmpty(t, msg)
	}

	closed := &DeliverySettings{StoreEnabled: false, Methods: map[enums.DeliveryMethod]bool{enums.DeliveryPickup: true}}
	ok, _ := ValidateDeliveryMethod(enums.DeliveryPickup, closed)
	require.False(t, ok)
}

func TestValidateDeliveryMethodListsAlternatives(t *testing.T) {
	s := &DeliverySettings{StoreEnabled: true, Methods: map[enums.DeliveryMethod]bool{
		enums.DeliveryPickup:   true,
		enums.DeliveryShipping: true,
	}}

	ok, msg := ValidateDeliveryMethod(enums.DeliveryPickup, s)
	require.True(t, ok)
	require.Empty(t, msg)

	ok, msg = ValidateDeliveryMethod(enums.DeliveryHomeDelivery, s)
	require.False(t, ok)
	require.Contains(t, msg, "Recoger en tienda, Envío por paquetería")
}

func TestValidateTaxAmount(t *testing.T) {
	s := &TaxSettings{TaxPercentage: dec("16"), Enabled: true}

	check := ValidateTaxAmount(dec("100.00"), dec("16.01"), dec("16"), s)
	require.True(t, check.Valid)
	require.True(t, check.Expected.Equal(dec("16.00")))

	check = ValidateTaxAmount(dec("100.00"), dec("16.02"), dec("16"), s)
	require.False(t, check.Valid)
	require.Equal(t, "totals.taxAmount", check.Field)

	check = ValidateTaxAmount(dec("100.00"), dec("16.00"), dec("15.98"), s)
	require.False(t, check.Valid)
	require.Equal(t, "totals.taxPercentage", check.Field)
}

func TestValidateTaxAmountDisabledExpectsZero(t *testing.T) {
	s := &TaxSettings{TaxPercentage: dec("16"), Enabled: false}

	require.True(t, ValidateTaxAmount(dec("100"), dec("0"), dec("16"), s).Valid)
	require.False(t, ValidateTaxAmount(dec("100"), dec("16"), dec("16"), s).Valid)
}

func TestValidateTaxAmountRejectsMissingSettings(t *testing.T) {
	check := ValidateTaxAmount(dec("100"), dec("16"), dec("16"), nil)
	require.False(t, check.Valid)
	require.Equal(t, "totals.taxAmount", check.Field)
}
