package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/maintenance"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const serviceKind = "maintenance-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	exitOnErr(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	exitOnErr(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	lock, err := maintenance.NewRedisLock(redisClient, maintenance.LockKey, cfg.Maintenance.LockTTL)
	exitOnErr(ctx, logg, "maintenance lock", err)

	retention, err := maintenance.NewOutboxRetention(logg, dbClient, outbox.NewRepository(dbClient.DB()), cfg.Maintenance.OutboxRetentionDays)
	exitOnErr(ctx, logg, "outbox retention job", err)

	reconcile, err := maintenance.NewStockReconcile(logg, product.NewRepository(dbClient.DB()), cfg.Maintenance.ReconcileBatchSize)
	exitOnErr(ctx, logg, "stock reconcile job", err)

	scheduler, err := maintenance.NewScheduler(maintenance.SchedulerParams{
		Logger:   logg,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Maintenance.Interval,
		Jobs:     []maintenance.Job{retention, reconcile},
	})
	exitOnErr(ctx, logg, "maintenance scheduler", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Maintenance.Interval.String(),
		"jobs":     scheduler.Jobs(),
	})

	logg.Info(runCtx, "maintenance worker ready")
	if err := scheduler.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "maintenance worker failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "maintenance worker shutting down gracefully")
}

func exitOnErr(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("failed to initialize %s", resource), err)
	os.Exit(1)
}
