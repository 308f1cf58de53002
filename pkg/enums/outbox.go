package enums

import "slices"

// OutboxAggregateType identifies the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
}

func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(validAggregateTypes, "aggregate type", value)
}

// OutboxEventType names the domain event stored in the outbox.
type OutboxEventType string

const (
	EventOrderCreated OutboxEventType = "order_created"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
}

func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(validOutboxEventTypes, "event type", value)
}
