package sideeffects

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	eventIDs []uuid.UUID
	events   []payloads.OrderCreatedEvent
	err      error
}

func (r *recordingDispatcher) Dispatch(_ context.Context, eventID uuid.UUID, event payloads.OrderCreatedEvent) error {
	r.eventIDs = append(r.eventIDs, eventID)
	r.events = append(r.events, event)
	return r.err
}

type noopReceiver struct{}

func (noopReceiver) Receive(context.Context, func(context.Context, *gcppubsub.Message)) error {
	return nil
}

func newTestConsumer(t *testing.T, d dispatcher) *Consumer {
	t.Helper()
	c, err := NewConsumer(noopReceiver{}, registry.NewConsumerDecoders(), d, logger.Nop())
	require.NoError(t, err)
	return c
}

func buildOrderMessage(t *testing.T, eventID string, version int) *gcppubsub.Message {
	t.Helper()
	data, err := json.Marshal(sampleEvent())
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    eventID,
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Data:       data,
	})
	require.NoError(t, err)
	return &gcppubsub.Message{
		ID:   "msg-1",
		Data: body,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     "order_created",
			"event_version":  "1",
			"aggregate_type": "order",
		},
	}
}

func TestConsumerDispatchesOrderCreated(t *testing.T) {
	d := &recordingDispatcher{}
	c := newTestConsumer(t, d)
	eventID := uuid.New()

	nack := c.process(context.Background(), buildOrderMessage(t, eventID.String(), 1))
	require.False(t, nack)
	require.Equal(t, []uuid.UUID{eventID}, d.eventIDs)
	require.Equal(t, sampleEvent().OrderID, d.events[0].OrderID)
	require.True(t, d.events[0].Totals.Total.Equal(sampleEvent().Totals.Total))
}

func TestConsumerNacksOnDispatchFailure(t *testing.T) {
	c := newTestConsumer(t, &recordingDispatcher{err: errBoom})
	require.True(t, c.process(context.Background(), buildOrderMessage(t, uuid.NewString(), 1)))
}

func TestConsumerDropsInvalidMessages(t *testing.T) {
	d := &recordingDispatcher{}
	c := newTestConsumer(t, d)

	badJSON := &gcppubsub.Message{ID: "x", Data: []byte("{")}
	require.False(t, c.process(context.Background(), badJSON))

	unknownVersion := buildOrderMessage(t, uuid.NewString(), 9)
	require.False(t, c.process(context.Background(), unknownVersion))

	badID := buildOrderMessage(t, "not-a-uuid", 1)
	badID.Attributes["event_id"] = "not-a-uuid"
	require.False(t, c.process(context.Background(), badID))

	wrongType := buildOrderMessage(t, uuid.NewString(), 1)
	wrongType.Attributes["event_type"] = "order_cancelled"
	require.False(t, c.process(context.Background(), wrongType))

	require.Empty(t, d.eventIDs)
}

func TestNewConsumerRequiresDeps(t *testing.T) {
	_, err := NewConsumer(nil, registry.NewConsumerDecoders(), &recordingDispatcher{}, logger.Nop())
	require.Error(t, err)
}
