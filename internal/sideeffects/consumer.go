package sideeffects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type eventDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, eventID uuid.UUID, event payloads.OrderCreatedEvent) error
}

// Consumer pulls order events off Pub/Sub and hands them to the dispatcher.
// Malformed messages are acked and dropped; dispatch failures are nacked so
// Pub/Sub redelivers them.
type Consumer struct {
	subscription receiver
	decoders     eventDecoder
	dispatcher   dispatcher
	logg         *logger.Logger
}

func NewConsumer(subscription receiver, decoders eventDecoder, d dispatcher, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("orders subscription is required")
	}
	if decoders == nil {
		return nil, errors.New("decoder registry is required")
	}
	if d == nil {
		return nil, errors.New("dispatcher is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		decoders:     decoders,
		dispatcher:   d,
		logg:         logg,
	}, nil
}

// Run blocks until ctx is canceled or the subscription fails.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.process(innerCtx, msg) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type orderMessage struct {
	eventID    uuid.UUID
	eventType  enums.OutboxEventType
	occurredAt time.Time
	event      payloads.OrderCreatedEvent
}

// process reports whether the message should be nacked.
func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) bool {
	fields := map[string]any{"message_id": msg.ID}

	decoded, err := c.decode(msg)
	if err != nil {
		fields["error"] = err.Error()
		c.logg.Warn(c.logg.WithFields(ctx, fields), "dropping invalid order message")
		return false
	}
	fields["event_id"] = decoded.eventID.String()
	fields["event_type"] = decoded.eventType
	fields["occurred_at"] = decoded.occurredAt.Format(time.RFC3339Nano)
	logCtx := c.logg.WithFields(ctx, fields)

	if err := c.dispatcher.Dispatch(logCtx, decoded.eventID, decoded.event); err != nil {
		c.logg.Error(logCtx, "order side effects failed", err)
		return true
	}
	c.logg.Info(logCtx, "order side effects handled")
	return false
}

func (c *Consumer) decode(msg *gcppubsub.Message) (*orderMessage, error) {
	stored, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		return nil, err
	}

	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(msg.Attributes[outbox.AttrEventType]))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}

	rawID := strings.TrimSpace(stored.EventID)
	if rawID == "" {
		rawID = strings.TrimSpace(msg.Attributes[outbox.AttrEventID])
	}
	eventID, err := uuid.Parse(rawID)
	if err != nil || eventID == uuid.Nil {
		return nil, fmt.Errorf("invalid event_id %q", rawID)
	}

	payload, err := c.decoders.Decode(eventType, stored.Version, stored.Data)
	if err != nil {
		return nil, err
	}
	event, ok := payload.(payloads.OrderCreatedEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T for %s", payload, eventType)
	}
	if event.OrderID == uuid.Nil {
		return nil, errors.New("orderId missing")
	}

	return &orderMessage{
		eventID:    eventID,
		eventType:  eventType,
		occurredAt: stored.OccurredAt.UTC(),
		event:      event,
	}, nil
}
