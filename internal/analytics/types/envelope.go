package types

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/electronicjova/storefront-backend/pkg/enums"
	"github.com/electronicjova/storefront-backend/pkg/outbox"
)

// Envelope is an order event as received from the orders topic.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Actor         *outbox.ActorRef          `json:"actor,omitempty"`
	Payload       json.RawMessage           `json:"payload"`
}

// ActorID returns the producing actor or an empty string.
func (e Envelope) ActorID() string {
	if e.Actor == nil {
		return ""
	}
	return e.Actor.ID
}

// HasPayload reports whether the envelope carries a non-null payload.
func (e Envelope) HasPayload() bool {
	trimmed := bytes.TrimSpace(e.Payload)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
