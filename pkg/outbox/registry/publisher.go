package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

// EventDescriptor is what the publisher needs to route one event type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is a validated outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError tells the publisher to dead-letter the row right away.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// EventRegistry routes outbox rows to topics.
type EventRegistry struct {
	topics map[enums.OutboxEventType]string
}

// NewEventRegistry binds every known event type to its configured topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	named := map[string]string{"orders": cfg.OrdersTopic}
	reg := &EventRegistry{topics: make(map[enums.OutboxEventType]string, len(schemas))}
	var errs []error
	for eventType, s := range schemas {
		topic := s.topic(named)
		if topic == "" {
			errs = append(errs, fmt.Errorf("no topic configured for %s", eventType))
			continue
		}
		reg.topics[eventType] = topic
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return reg, nil
}

// Resolve checks the row against its schema and decodes the payload. Every
// failure is non-retryable because the stored row will never change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	topic, ok := r.topics[event.EventType]
	if !ok {
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	}
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, nonRetryable("%s: %w", event.EventType, err)
	}
	s, dec, err := lookup(event.EventType, envelope.Version)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	switch {
	case s.aggregate != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", s.aggregate, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("missing aggregate_id")
	}

	payload, err := dec(envelope.Data)
	if err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{
		Descriptor: EventDescriptor{EventType: event.EventType, AggregateType: s.aggregate, Topic: topic},
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
