package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef names the actor responsible for an event, when one exists.
// System-driven events (scheduler, reconciliation) carry no actor.
type ActorRef struct {
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
}

// PayloadEnvelope is the wire shape stored in outbox_events.payload.
// Consumers key on Version before decoding Data, so the envelope
// fields stay stable even as individual payloads evolve.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
