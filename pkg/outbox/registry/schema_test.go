package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func TestConsumerDecodersOrderCreated(t *testing.T) {
	orderID := uuid.New()
	raw, err := json.Marshal(payloads.OrderCreatedEvent{OrderID: orderID, OrderNumber: 42, DeliveryMethod: enums.DeliveryPickup})
	require.NoError(t, err)

	out, err := NewConsumerDecoders().Decode(enums.EventOrderCreated, 1, raw)
	require.NoError(t, err)
	evt, ok := out.(payloads.OrderCreatedEvent)
	require.True(t, ok)
	require.Equal(t, orderID, evt.OrderID)
	require.Equal(t, int64(42), evt.OrderNumber)
}

func TestDecoderRegistryUnknownVersion(t *testing.T) {
	_, err := NewConsumerDecoders().Decode(enums.EventOrderCreated, 2, json.RawMessage(`{}`))
	require.ErrorContains(t, err, "order_created@v2")
}

func TestDecodersRejectInvalidPayload(t *testing.T) {
	_, err := NewConsumerDecoders().Decode(enums.EventOrderCreated, 1, json.RawMessage(`{"orderNumber":5}`))
	require.ErrorContains(t, err, "orderId")

	_, err = NewConsumerDecoders().Decode("order_paid", 1, json.RawMessage(`{}`))
	require.ErrorIs(t, err, errUnknownEvent)
}
