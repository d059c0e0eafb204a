package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
)

// PayloadEnvelope is stored in outbox_events.payload and published verbatim
// as the pub/sub message body. Data holds the versioned event payload.
type PayloadEnvelope struct {
	Version     int                   `json:"version"`
	EventID     string                `json:"event_id"`
	EventType   enums.OutboxEventType `json:"event_type,omitempty"`
	AggregateID string                `json:"aggregate_id,omitempty"`
	OccurredAt  time.Time             `json:"occurred_at"`
	ActorID     string                `json:"actor_id,omitempty"`
	Data        json.RawMessage       `json:"data"`
}

var errEmptyPayload = errors.New("envelope data is empty")

// DecodeEnvelope parses a message body and checks the fields every consumer
// relies on.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, uuid.UUID, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return envelope, uuid.Nil, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version <= 0 {
		return envelope, uuid.Nil, fmt.Errorf("envelope version %d is invalid", envelope.Version)
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return envelope, uuid.Nil, fmt.Errorf("envelope event id: %w", err)
	}
	if envelope.empty() {
		return envelope, eventID, errEmptyPayload
	}
	return envelope, eventID, nil
}

func (e PayloadEnvelope) empty() bool {
	trimmed := bytes.TrimSpace(e.Data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
