package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/ids"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	conn     *gorm.DB
	products *product.Repository
	settings *settings.Repository
	users    *users.Repository
	registry *prometheus.Registry
	svc      Service
}

func newFixture(t *testing.T, store product.Store) *fixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(
		&models.StoreSettings{}, &models.User{}, &models.Product{}, &models.Order{}, &models.OutboxEvent{},
	))

	f := &fixture{
		conn:     conn,
		products: product.NewRepository(conn),
		settings: settings.NewRepository(conn),
		users:    users.NewRepository(conn),
		registry: prometheus.NewRegistry(),
	}
	if store == nil {
		store = f.products
	}

	reader, err := settings.NewReader(f.settings)
	require.NoError(t, err)
	gen, err := ids.NewGenerator(1)
	require.NoError(t, err)

	f.svc, err = NewService(ServiceParams{
		Config:   config.OrdersConfig{TxMaxAttempts: 5, TxBaseBackoff: time.Millisecond, TxMaxBackoff: 5 * time.Millisecond},
		Logger:   logger.Nop(),
		Tx:       db.FromConn(conn),
		Orders:   NewRepository(conn),
		Products: store,
		Settings: reader,
		Users:    f.users,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Numbers:  gen,
		Metrics:  metrics.NewOrderMetrics(f.registry),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) seedStore(t *testing.T) {
	t.Helper()
	require.NoError(t, f.settings.Upsert(context.Background(), models.StoreSettings{
		StoreEnabled:    true,
		TaxEnabled:      true,
		TaxPercentage:   dec("16"),
		PickupEnabled:   true,
		ShippingEnabled: true,
	}))
}

func (f *fixture) seedUser(t *testing.T) models.User {
	t.Helper()
	u := models.User{Email: "ana@example.com", FirstName: "Ana", LastName: "Pérez"}
	require.NoError(t, f.users.Create(context.Background(), &u))
	return u
}

func (f *fixture) seedProduct(t *testing.T, p models.Product) models.Product {
	t.Helper()
	require.NoError(t, f.products.Create(context.Background(), &p))
	return p
}

func (f *fixture) stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := f.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func happyInput(userID, productID uuid.UUID) CreateOrderInput {
	return CreateOrderInput{
		UserID:         userID,
		DeliveryMethod: enums.DeliveryPickup,
		PaymentMethod:  "efectivo",
		Items:          []ItemInput{{ProductID: productID, ProductName: "Taza", Quantity: 2, UnitPrice: dec("25.00"), TotalPrice: dec("50.00")}},
		Totals:         TotalsInput{Subtotal: dec("50.00"), TaxAmount: dec("8.00"), TaxPercentage: dec("16"), ShippingCost: dec("0"), Total: dec("58.00"), ItemCount: 2},
	}
}

func fieldErrors(t *testing.T, err error) []types.FieldError {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().([]types.FieldError)
	require.True(t, ok)
	return details
}

func TestCreateOrderHappyPath(t *testing.T) {
	f := newFixture(t, nil)
	f.seedStore(t)
	user := f.seedUser(t)
	p := f.seedProduct(t, models.Product{Name: "Taza", SKU: "TZ", Price: dec("25.00"), Stock: 10, Status: enums.ProductStatusActive})

	res, err := f.svc.CreateOrder(context.Background(), happyInput(user.ID, p.ID))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.OrderID)
	require.NotZero(t, res.OrderNumber)
	require.Equal(t, 1, res.Attempts)

	require.Equal(t, 8, f.stockOf(t, p.ID))

	stored, err := NewRepository(f.conn).FindByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	require.True(t, stored.Totals.Total.Equal(dec("58.00")))
	require.Equal(t, "Ana", stored.UserData.FirstName)
	require.Equal(t, "TZ", stored.Items[0].SKU)
	require.Equal(t, enums.OrderStatusPending, stored.Status)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventOrderCreated, events[0].EventType)
	require.Equal(t, res.OrderID, events[0].AggregateID)

	u, err := f.users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, 1, u.PurchaseCount)

	count, err := NewRepository(f.conn).CountByUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestCreateOrderRejectionIsAtomic(t *testing.T) {
	f := newFixture(t, nil)
	f.seedStore(t)
	user := f.seedUser(t)
	a := f.seedProduct(t, models.Product{Name: "Taza", Price: dec("25.00"), Stock: 10, Status: enums.ProductStatusActive})
	b := f.seedProduct(t, models.Product{Name: "Plato", Price: dec("30.00"), Stock: 4, Status: enums.ProductStatusActive})

	input := happyInput(user.ID, a.ID)
	input.Items = append(input.Items, ItemInput{ProductID: b.ID, Quantity: 1, UnitPrice: dec("1.00"), TotalPrice: dec("1.00")})
	input.Totals = TotalsInput{Subtotal: dec("51"), TaxAmount: dec("8.16"), TaxPercentage: dec("16"), Total: dec("59.16"), ItemCount: 3}

	_, err := f.svc.CreateOrder(context.Background(), input)
	details := fieldErrors(t, err)
	require.Contains(t, fieldsOf(details), "items[1].unitPrice")

	require.Equal(t, 10, f.stockOf(t, a.ID))
	require.Equal(t, 4, f.stockOf(t, b.ID))
	require.Zero(t, f.count(t, &models.Order{}))
	require.Zero(t, f.count(t, &models.OutboxEvent{}))
	require.Equal(t, float64(1), rejectedCount(t, f.registry, metrics.RejectValidation))
}

func TestCreateOrderVariantOversell(t *testing.T) {
	f := newFixture(t, nil)
	f.seedStore(t)
	user := f.seedUser(t)
	variantID := "red"
	p := f.seedProduct(t, models.Product{
		Name: "Playera", Price: dec("100"), Stock: 3, Status: enums.ProductStatusActive,
		Variants: []models.Variant{{ID: variantID, Name: "Roja", Price: dec("100"), Stock: 3, Status: enums.ProductStatusActive}},
	})

	input := CreateOrderInput{
		UserID:         user.ID,
		DeliveryMethod: enums.DeliveryPickup,
		PaymentMethod:  "efectivo",
		Items:          []ItemInput{{ProductID: p.ID, VariantID: &variantID, Quantity: 5, UnitPrice: dec("100"), TotalPrice: dec("500")}},
		Totals:         TotalsInput{Subtotal: dec("500"), TaxAmount: dec("80"), TaxPercentage: dec("16"), Total: dec("580"), ItemCount: 5},
	}

	_, err := f.svc.CreateOrder(context.Background(), input)
	details := fieldErrors(t, err)
	require.Equal(t, "items[0].quantity", details[0].Field)
	require.Contains(t, details[0].Message, "Disponible: 3, solicitado: 5")

	stored, err := f.products.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stored.Variants[0].Stock)
	require.Equal(t, 3, stored.Stock)
}

func TestCreateOrderUserErrors(t *testing.T) {
	f := newFixture(t, nil)
	f.seedStore(t)
	p := f.seedProduct(t, models.Product{Name: "Taza", Price: dec("25.00"), Stock: 10, Status: enums.ProductStatusActive})

	_, err := f.svc.CreateOrder(context.Background(), happyInput(uuid.New(), p.ID))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	incomplete := models.User{Email: "x@example.com", FirstName: "", LastName: "Ruiz"}
	require.NoError(t, f.users.Create(context.Background(), &incomplete))
	_, err = f.svc.CreateOrder(context.Background(), happyInput(incomplete.ID, p.ID))
	require.Equal(t, []string{"userData.firstName"}, fieldsOf(fieldErrors(t, err)))
	require.Equal(t, 10, f.stockOf(t, p.ID))
}

func TestCreateOrderMissingSettingsFailsClosed(t *testing.T) {
	f := newFixture(t, nil)
	user := f.seedUser(t)
	p := f.seedProduct(t, models.Product{Name: "Taza", Price: dec("25.00"), Stock: 10, Status: enums.ProductStatusActive})

	_, err := f.svc.CreateOrder(context.Background(), happyInput(user.ID, p.ID))
	fields := fieldsOf(fieldErrors(t, err))
	require.Contains(t, fields, "deliveryMethod")
	require.Contains(t, fields, "totals.taxAmount")
	require.Equal(t, 10, f.stockOf(t, p.ID))
}

func TestCreateOrderNoOversellUnderConcurrency(t *testing.T) {
	f := newFixture(t, nil)
	f.seedStore(t)
	user := f.seedUser(t)
	variantID := "red"
	p := f.seedProduct(t, models.Product{
		Name: "Playera", Price: dec("100"), Stock: 4, Status: enums.ProductStatusActive,
		Variants: []models.Variant{{ID: variantID, Name: "Roja", Price: dec("100"), Stock: 4, Status: enums.ProductStatusActive}},
	})

	input := CreateOrderInput{
		UserID:         user.ID,
		DeliveryMethod: enums.DeliveryPickup,
		PaymentMethod:  "efectivo",
		Items:          []ItemInput{{ProductID: p.ID, VariantID: &variantID, Quantity: 4, UnitPrice: dec("100"), TotalPrice: dec("400")}},
		Totals:         TotalsInput{Subtotal: dec("400"), TaxAmount: dec("64"), TaxPercentage: dec("16"), Total: dec("464"), ItemCount: 4},
	}

	const workers = 6
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateOrder(context.Background(), input)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		details := fieldErrors(t, err)
		require.Equal(t, "items[0].quantity", details[0].Field)
		require.Contains(t, details[0].Message, "Disponible: 0, solicitado: 4")
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 0, f.stockOf(t, p.ID))
	require.Equal(t, int64(1), f.count(t, &models.Order{}))
}

type conflictingStore struct {
	product.Store
	mu        sync.Mutex
	conflicts int
}

func (c *conflictingStore) WithTx(tx *gorm.DB) product.Store {
	return &conflictingTx{Store: c.Store.WithTx(tx), parent: c}
}

type conflictingTx struct {
	product.Store
	parent *conflictingStore
}

func (c *conflictingTx) ApplyStockMutation(ctx context.Context, m pricing.StockMutation) error {
	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()
	if c.parent.conflicts > 0 {
		c.parent.conflicts--
		return product.ErrStockConflict
	}
	return c.Store.ApplyStockMutation(ctx, m)
}

func TestCreateOrderRetriesStockConflict(t *testing.T) {
	store := &conflictingStore{conflicts: 2}
	f := newFixture(t, store)
	store.Store = f.products
	f.seedStore(t)
	user := f.seedUser(t)
	p := f.seedProduct(t, models.Product{Name: "Taza", Price: dec("25.00"), Stock: 10, Status: enums.ProductStatusActive})

	res, err := f.svc.CreateOrder(context.Background(), happyInput(user.ID, p.ID))
	require.NoError(t, err)
	require.Equal(t, 3, res.Attempts)
	require.Equal(t, 8, f.stockOf(t, p.ID))
	require.Equal(t, int64(1), f.count(t, &models.Order{}))
}

func TestCreateOrderConflictExhaustionIsInternal(t *testing.T) {
	store := &conflictingStore{conflicts: 100}
	f := newFixture(t, store)
	store.Store = f.products
	f.seedStore(t)
	user := f.seedUser(t)
	p := f.seedProduct(t, models.Product{Name: "Taza", Price: dec("25.00"), Stock: 10, Status: enums.ProductStatusActive})

	_, err := f.svc.CreateOrder(context.Background(), happyInput(user.ID, p.ID))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
	require.ErrorIs(t, err, product.ErrStockConflict)
	require.Equal(t, 95, store.conflicts)
	require.Equal(t, 10, f.stockOf(t, p.ID))
	require.Zero(t, f.count(t, &models.Order{}))
}

var (
	_ outboxPublisher = (*outbox.Service)(nil)
	_ userStore       = (*users.Repository)(nil)
	_ txRunner        = (*db.Client)(nil)
	_ orderNumbers    = (*ids.Generator)(nil)
)

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func rejectedCount(t *testing.T, reg *prometheus.Registry, reason string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "orders_rejected_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "reason" && l.GetValue() == reason {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
