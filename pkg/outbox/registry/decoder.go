package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
)

// ErrUnknownPayload is returned when no decoder exists for an event type and
// version pair. Consumers treat it as a poison message.
var ErrUnknownPayload = errors.New("unknown payload version")

// DecodeFunc turns the envelope's data field into a typed payload.
type DecodeFunc func(payload json.RawMessage) (any, error)

type payloadKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry resolves versioned payload decoders for consumers.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[payloadKey]DecodeFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[payloadKey]DecodeFunc)}
}

// Register stores a decoder for the given event type and version, replacing
// any earlier one.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decode DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[payloadKey{eventType: eventType, version: version}] = decode
}

// RegisterJSON registers a decoder that unmarshals into a fresh *T.
func RegisterJSON[T any](r *DecoderRegistry, eventType enums.OutboxEventType, version int) {
	r.Register(eventType, version, func(payload json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(payload, out); err != nil {
			return nil, fmt.Errorf("decode %s@v%d: %w", eventType, version, err)
		}
		return out, nil
	})
}

// Decode runs the decoder registered for the event type and version.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decode, ok := r.decoders[payloadKey{eventType: eventType, version: version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s@v%d", ErrUnknownPayload, eventType, version)
	}
	return decode(payload)
}

// Versions lists the registered versions for an event type in ascending order.
func (r *DecoderRegistry) Versions(eventType enums.OutboxEventType) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var versions []int
	for key := range r.decoders {
		if key.eventType == eventType {
			versions = append(versions, key.version)
		}
	}
	sort.Ints(versions)
	return versions
}

// DecodeAs decodes and asserts the payload type in one step.
func DecodeAs[T any](r *DecoderRegistry, eventType enums.OutboxEventType, version int, payload json.RawMessage) (*T, error) {
	decoded, err := r.Decode(eventType, version, payload)
	if err != nil {
		return nil, err
	}
	typed, ok := decoded.(*T)
	if !ok {
		return nil, fmt.Errorf("decoder for %s@v%d returned %T", eventType, version, decoded)
	}
	return typed, nil
}
