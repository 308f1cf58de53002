package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	_ = godotenv.Load()
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
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": serviceKind})

	// "outbox-publisher requeue <event-id>..." moves dead-lettered events
	// back into the publish queue and exits.
	if len(os.Args) > 1 && os.Args[1] == "requeue" {
		if err := requeue(ctx, cfg, logg, os.Args[2:]); err != nil {
			logg.Error(ctx, "requeue failed", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shut down gracefully")
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

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer closeQuietly(ctx, logg, "pubsub", pubsubClient.Close)

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	topics := &publisherCache{open: pubsubClient.Publisher}
	defer topics.stopAll()

	service, err := NewService(ServiceParams{
		Config:           cfg.Outbox,
		Logger:           logg,
		DB:               dbClient,
		PubSub:           pubsubClient,
		Repository:       outbox.NewRepository(dbClient.DB()),
		Registry:         events,
		DLQRepository:    outbox.NewDLQRepository(dbClient.DB()),
		PublisherFactory: topics.get,
		Metrics:          metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	go serveMetrics(ctx, logg, ":"+cfg.App.Port)

	logg.Info(ctx, "outbox publisher ready")
	return service.Run(ctx)
}

func requeue(ctx context.Context, cfg *config.Config, logg *logger.Logger, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: outbox-publisher requeue <event-id>...")
	}
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return fmt.Errorf("event id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	dlq := outbox.NewDLQRepository(dbClient.DB())
	var errs error
	for _, id := range ids {
		if err := dlq.Requeue(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		logg.Info(logg.WithField(ctx, "event_id", id.String()), "event requeued")
	}
	return errs
}

// publisherCache keeps one Pub/Sub publisher per topic so batching and
// ordering state survive across outbox rows.
type publisherCache struct {
	open func(topic string) *gcppubsub.Publisher

	mu   sync.Mutex
	byID map[string]*gcpPublisher
}

func (c *publisherCache) get(topic string) publisher {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.byID[topic]; ok {
		return p
	}
	raw := c.open(topic)
	if raw == nil {
		return nil
	}
	if c.byID == nil {
		c.byID = map[string]*gcpPublisher{}
	}
	p := &gcpPublisher{raw}
	c.byID[topic] = p
	return p
}

func (c *publisherCache) stopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.byID {
		p.Stop()
	}
}

func serveMetrics(ctx context.Context, logg *logger.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics server stopped", err)
	}
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}
