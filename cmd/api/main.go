// Command api serves the order-creation HTTP endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/ids"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	serviceKind       = "api"
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	// Money goes out as JSON numbers, matching the request shape.
	decimal.MarshalJSONWithoutQuotes = true

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "api: reading .env:", err)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	deps := []controllers.Dependency{{Name: "db", Pinger: dbClient}}
	var replay redis.IdempotencyStore
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer closeQuietly(ctx, logg, "redis", redisClient.Close)
		replay = redisClient
		deps = append(deps, controllers.Dependency{Name: "redis", Pinger: redisClient})
	} else {
		logg.Warn(ctx, "redis not configured; Idempotency-Key replay disabled")
		deps = append(deps, controllers.Dependency{Name: "redis"})
	}

	svc, err := newOrderService(cfg, logg, dbClient)
	if err != nil {
		return err
	}

	addr := ":" + listenPort(cfg)
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:       cfg,
			Logger:       logg,
			Orders:       svc,
			Idempotency:  replay,
			Metrics:      prometheus.DefaultGatherer,
			Dependencies: deps,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	return serve(ctx, logg.WithField(ctx, "addr", addr), logg, server)
}

func newOrderService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (orders.Service, error) {
	numbers, err := ids.NewGenerator(cfg.Orders.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("order numbers: %w", err)
	}
	policy, err := settings.NewReader(settings.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, fmt.Errorf("settings reader: %w", err)
	}
	conn := dbClient.DB()
	svc, err := orders.NewService(orders.ServiceParams{
		Config:   cfg.Orders,
		Logger:   logg,
		Tx:       dbClient,
		Orders:   orders.NewRepository(conn),
		Products: product.NewRepository(conn),
		Settings: policy,
		Users:    users.NewRepository(conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logg),
		Numbers:  numbers,
		Metrics:  metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}
	return svc, nil
}

// listenPort prefers PORT, which Cloud Run sets, over the configured port.
func listenPort(cfg *config.Config) string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return cfg.App.Port
}

// serve blocks until ctx is cancelled, then drains in-flight requests.
func serve(ctx, logCtx context.Context, logg *logger.Logger, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "api listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}
