// Package registry describes every outbox event: the aggregate it belongs to,
// the topic it is published on and how each payload version decodes.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// DecoderFunc turns an envelope's data into a typed payload value.
type DecoderFunc func(data json.RawMessage) (any, error)

type checker interface {
	Validate() error
}

// decodeAs decodes into T and runs T's Validate when it has one.
func decodeAs[T any](data json.RawMessage) (any, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if c, ok := any(out).(checker); ok {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// schema is the static description of one event type. topic holds the
// config key resolved by NewEventRegistry.
type schema struct {
	aggregate enums.OutboxAggregateType
	topic     func(topics map[string]string) string
	versions  map[int]DecoderFunc
}

var schemas = map[enums.OutboxEventType]schema{
	enums.EventOrderCreated: {
		aggregate: enums.AggregateOrder,
		topic:     func(t map[string]string) string { return t["orders"] },
		versions: map[int]DecoderFunc{
			1: decodeAs[payloads.OrderCreatedEvent],
		},
	},
}

var errUnknownEvent = errors.New("unknown event type")

func lookup(eventType enums.OutboxEventType, version int) (schema, DecoderFunc, error) {
	s, ok := schemas[eventType]
	if !ok {
		return schema{}, nil, fmt.Errorf("%w %s", errUnknownEvent, eventType)
	}
	dec, ok := s.versions[version]
	if !ok {
		return s, nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return s, dec, nil
}

// ConsumerDecoders decodes payloads on the subscriber side.
type ConsumerDecoders struct{}

// NewConsumerDecoders returns decoders for every known event version.
func NewConsumerDecoders() ConsumerDecoders {
	return ConsumerDecoders{}
}

func (ConsumerDecoders) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	_, dec, err := lookup(eventType, version)
	if err != nil {
		return nil, err
	}
	return dec(data)
}
