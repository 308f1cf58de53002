package models

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// MaxDeadLetterError caps the stored error text in bytes.
const MaxDeadLetterError = 1024

// OutboxDLQ is the parking table for outbox rows that will not be retried.
// One row per event; the original payload is copied verbatim.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID                  `gorm:"column:event_id;type:uuid;not null;uniqueIndex"`
	EventType     enums.OutboxEventType      `gorm:"column:event_type;type:text;not null"`
	AggregateType enums.OutboxAggregateType  `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID   uuid.UUID                  `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage            `gorm:"column:payload_json;type:jsonb;not null"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"column:error_reason;type:text;not null"`
	ErrorMessage  *string                    `gorm:"column:error_message"`
	AttemptCount  int                        `gorm:"column:attempt_count;not null;default:0"`
	FailedAt      time.Time                  `gorm:"column:failed_at;autoCreateTime"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxDLQ) TableName() string {
	return "outbox_dlq"
}

// NewDeadLetter copies event into a DLQ row. attempts is the total number of
// publish attempts including the one that failed.
func NewDeadLetter(event OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, attempts int, at time.Time) OutboxDLQ {
	row := OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		AttemptCount:  attempts,
		FailedAt:      at,
	}
	if cause != nil {
		msg := TruncateError(cause.Error())
		row.ErrorMessage = &msg
	}
	return row
}

// TruncateError shortens msg to MaxDeadLetterError bytes without splitting a
// UTF-8 sequence.
func TruncateError(msg string) string {
	if len(msg) <= MaxDeadLetterError {
		return msg
	}
	cut := MaxDeadLetterError
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}
