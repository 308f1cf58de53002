package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pinger interface {
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherFactory func(topic string) publisher

type ServiceParams struct {
	Config           config.OutboxConfig
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pinger
	Repository       outboxRepository
	Registry         registryResolver
	DLQRepository    dlqRepository
	PublisherFactory publisherFactory
	Metrics          *metrics.OutboxMetrics
}

// Service drains outbox_events into Pub/Sub.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pinger
	repo         outboxRepository
	registry     registryResolver
	dlq          dlqRepository
	publishers   publisherFactory
	metrics      *metrics.OutboxMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		publishers:   params.PublisherFactory,
		metrics:      params.Metrics,
		batchSize:    positiveOr(params.Config.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(params.Config.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(params.Config.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

func (p ServiceParams) validate() error {
	var missing []string
	for name, absent := range map[string]bool{
		"logger":            p.Logger == nil,
		"database client":   p.DB == nil,
		"pubsub client":     p.PubSub == nil,
		"outbox repository": p.Repository == nil,
		"event registry":    p.Registry == nil,
		"dlq repository":    p.DLQRepository == nil,
		"publisher factory": p.PublisherFactory == nil,
	} {
		if absent {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("outbox publisher missing: %s", strings.Join(missing, ", "))
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is canceled. Batch errors back off exponentially.
func (s *Service) Run(ctx context.Context) error {
	for name, check := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.pubsub.Ping} {
		if err := check(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	backoff := s.errorBackoff()
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}

		wait := time.Duration(0)
		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait, _ = backoff.Next()
		case processed:
			backoff = s.errorBackoff()
		default:
			backoff = s.errorBackoff()
			wait = s.pollInterval
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// errorBackoff spaces out retries after failed batches: doubling from the
// poll interval, capped, with jitter so replicas do not retry in lockstep.
func (s *Service) errorBackoff() retry.Backoff {
	b := retry.NewExponential(s.pollInterval)
	b = retry.WithCappedDuration(maxBackoff, b)
	return retry.WithJitter(jitterWindow, b)
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var count int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		count = len(events)
		for _, event := range events {
			if err := s.processEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return count > 0, err
}

// verdict is what happens to a row after one publish attempt.
type verdict int

const (
	verdictPublished verdict = iota
	verdictRetry
	verdictDeadLetter
)

// judge maps a publish error to a verdict. attempt counts the try just made.
func judge(err error, attempt, maxAttempts int) (verdict, enums.OutboxDLQErrorReason) {
	var nonRetry registry.NonRetryableError
	switch {
	case err == nil:
		return verdictPublished, ""
	case errors.As(err, &nonRetry):
		return verdictDeadLetter, enums.OutboxDLQReasonNonRetryable
	case attempt >= maxAttempts:
		return verdictDeadLetter, enums.OutboxDLQReasonMaxAttempts
	default:
		return verdictRetry, ""
	}
}

// processEvent publishes one row. Only bookkeeping failures are returned;
// publish failures are recorded on the row or moved to the DLQ.
func (s *Service) processEvent(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	attempt := event.AttemptCount + 1
	ctx = s.logg.WithFields(ctx, map[string]any{
		"outbox_id":    event.ID.String(),
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID.String(),
		"attempt":      attempt,
	})

	resolved, err := s.registry.Resolve(event)
	if err == nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"event_id": resolved.Envelope.EventID,
			"topic":    resolved.Descriptor.Topic,
		})
		err = s.publish(ctx, event, resolved)
	} else {
		err = registry.NewNonRetryableError(err)
	}

	outcome, reason := judge(err, attempt, s.maxAttempts)
	switch outcome {
	case verdictPublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(string(event.EventType))
		s.logg.Info(ctx, "outbox event published")
	case verdictRetry:
		s.metrics.IncFailed(string(event.EventType))
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox publish failed, will retry")
		if err := s.repo.MarkFailedTx(tx, event.ID, err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
	case verdictDeadLetter:
		return s.deadLetter(ctx, tx, event, reason, attempt, err)
	}
	return nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, attempt int, cause error) error {
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event moved to dlq")

	entry := models.NewDeadLetter(event, reason, cause, attempt, time.Now().UTC())
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.IncDeadLettered(string(event.EventType), string(reason))
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			outbox.AttrEventID:       resolved.Envelope.EventID,
			outbox.AttrEventType:     string(event.EventType),
			outbox.AttrEventVersion:  strconv.Itoa(resolved.Envelope.Version),
			outbox.AttrAggregateType: string(event.AggregateType),
			outbox.AttrAggregateID:   event.AggregateID.String(),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// gcpPublisher adapts *pubsub.Publisher to the publisher interface.
type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
