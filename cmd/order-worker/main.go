package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/internal/sideeffects"
	"github.com/angelmondragon/storefront-backend/pkg/bigquery"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/search"
)

const serviceKind = "order-worker"

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
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()
	requireResource(ctx, logg, "orders subscription", pubsubClient.EnsureOrdersSubscription(ctx))
	subscription := pubsubClient.OrdersSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "orders subscription", errors.New("subscription not configured"))
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL, cfg.Eventing.EffectLease)
	requireResource(ctx, logg, "idempotency manager", err)

	effects := []sideeffects.Effect{}

	counters, err := sideeffects.NewDeliveryCounters(dbClient.DB())
	requireResource(ctx, logg, "delivery counters", err)
	effects = append(effects, counters)

	if cfg.Algolia.Enabled() {
		index, err := search.NewClient(cfg.Algolia)
		requireResource(ctx, logg, "algolia", err)
		effect, err := sideeffects.NewSearchIndex(index)
		requireResource(ctx, logg, "search index effect", err)
		effects = append(effects, effect)
	} else {
		logg.Warn(ctx, "algolia not configured; search-index effect disabled")
	}

	if cfg.Sendgrid.Enabled() {
		mail, err := mailer.New(cfg.Sendgrid)
		requireResource(ctx, logg, "sendgrid", err)
		effect, err := sideeffects.NewConfirmationEmail(mail)
		requireResource(ctx, logg, "confirmation email effect", err)
		effects = append(effects, effect)
	} else {
		logg.Warn(ctx, "sendgrid not configured; confirmation-email effect disabled")
	}

	if strings.TrimSpace(cfg.GCP.ProjectID) != "" && strings.TrimSpace(cfg.BigQuery.Dataset) != "" {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		requireResource(ctx, logg, "bigquery", err)
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(ctx, "failed to close bigquery client", err)
			}
		}()
		effect, err := sideeffects.NewOrderAnalytics(bqClient)
		requireResource(ctx, logg, "order analytics effect", err)
		effects = append(effects, effect)
	} else {
		logg.Warn(ctx, "bigquery not configured; order-analytics effect disabled")
	}

	dispatcher, err := sideeffects.NewDispatcher(manager, logg, metrics.NewSideEffectMetrics(prometheus.DefaultRegisterer), effects...)
	requireResource(ctx, logg, "side effect dispatcher", err)

	consumer, err := sideeffects.NewConsumer(subscription, registry.NewConsumerDecoders(), dispatcher, logg)
	requireResource(ctx, logg, "order consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"effects":     dispatcher.Effects(),
	})

	go serveMetrics(runCtx, logg, ":"+cfg.App.Port)

	logg.Info(runCtx, "order worker ready")
	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "order worker failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "order worker shutting down gracefully")
}

func serveMetrics(ctx context.Context, logg *logger.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics server stopped", err)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
