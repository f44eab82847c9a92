package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/norberto-e-888/pos-app/pkg/enums"
)

// EnvelopeVersion is the current layout of PayloadEnvelope.
const EnvelopeVersion = 1

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID  `json:"userId"`
	Role   enums.Role `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events and sent on
// the wire. EventID equals the outbox row id so consumers can dedupe on it.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored or received payload.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, err
	}
	return envelope, nil
}
