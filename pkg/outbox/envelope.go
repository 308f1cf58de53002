package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Pub/Sub attribute names set on every published outbox event.
const (
	AttrEventID       = "event_id"
	AttrEventType     = "event_type"
	AttrEventVersion  = "event_version"
	AttrAggregateType = "aggregate_type"
	AttrAggregateID   = "aggregate_id"
)

// ErrEmptyPayload means the envelope decoded but carried no data.
var ErrEmptyPayload = errors.New("outbox envelope has no data")

// ActorRef identifies the customer whose action produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
}

// PayloadEnvelope wraps every event payload. The same bytes are stored in
// outbox_events.payload and sent as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses raw and rejects envelopes without a version or data.
// Version 0 is treated as 1 for rows written before versioning existed.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version < 0 {
		return PayloadEnvelope{}, fmt.Errorf("envelope version %d", env.Version)
	}
	if env.Version == 0 {
		env.Version = 1
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, ErrEmptyPayload
	}
	return env, nil
}
