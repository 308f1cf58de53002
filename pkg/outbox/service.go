package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// DomainEvent is what services hand to Emit.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	if !e.EventType.IsValid() || !e.AggregateType.IsValid() {
		return fmt.Errorf("unsupported outbox event %s/%s", e.EventType, e.AggregateType)
	}
	if e.Data == nil {
		return fmt.Errorf("%s: data is required", e.EventType)
	}
	return nil
}

// row renders the event as an outbox_events row with a fresh event id.
func (e DomainEvent) row(now time.Time) (models.OutboxEvent, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("marshal %s payload: %w", e.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    max(e.Version, 1),
		EventID:    uuid.NewString(),
		OccurredAt: e.OccurredAt,
		Actor:      e.Actor,
		Data:       data,
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = now
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("marshal %s envelope: %w", e.EventType, err)
	}
	return models.OutboxEvent{
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       payload,
	}, nil
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: func() time.Time { return time.Now().UTC() }}
}

// Emit queues events through tx so they commit or roll back with the
// caller's state change. Nothing is written if any event is invalid.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, events ...DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if len(events) == 0 {
		return nil
	}

	var errs error
	rows := make([]models.OutboxEvent, 0, len(events))
	for _, event := range events {
		if err := event.validate(); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		row, err := event.row(s.now())
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		rows = append(rows, row)
	}
	if errs != nil {
		return errs
	}

	if err := s.repo.Insert(tx, rows...); err != nil {
		return fmt.Errorf("insert outbox rows: %w", err)
	}
	if s.logg != nil {
		for _, row := range rows {
			s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
				"outbox_id":    row.ID.String(),
				"event_type":   row.EventType,
				"aggregate_id": row.AggregateID.String(),
			}), "outbox event queued")
		}
	}
	return nil
}
