package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox/payloads"
)

// EventDescriptor says which aggregate owns an event type and where it is
// published.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row with its envelope and typed payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// PayloadDecoders returns a registry holding every payload version the
// service emits. Publisher and consumers share it.
func PayloadDecoders() *DecoderRegistry {
	decoders := NewDecoderRegistry()
	RegisterJSON[payloads.StockChangedEvent](decoders, enums.EventStockChanged, 1)
	RegisterJSON[payloads.StockLowEvent](decoders, enums.EventStockLow, 1)
	RegisterJSON[payloads.PurchaseOrderReceivedEvent](decoders, enums.EventPurchaseOrderReceived, 1)
	return decoders
}

// EventRegistry routes outbox rows to topics and decodes their payloads.
type EventRegistry struct {
	descriptors map[enums.OutboxEventType]EventDescriptor
	decoders    *DecoderRegistry
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.StockTopic == "" {
		return nil, errors.New("stock topic is required")
	}
	if cfg.PurchasingTopic == "" {
		return nil, errors.New("purchasing topic is required")
	}
	r := &EventRegistry{
		descriptors: map[enums.OutboxEventType]EventDescriptor{},
		decoders:    PayloadDecoders(),
	}
	r.add(enums.EventStockChanged, enums.AggregateStock, cfg.StockTopic)
	r.add(enums.EventStockLow, enums.AggregateStock, cfg.StockTopic)
	r.add(enums.EventPurchaseOrderReceived, enums.AggregatePurchaseOrder, cfg.PurchasingTopic)
	return r, nil
}

func (r *EventRegistry) add(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) {
	r.descriptors[eventType] = EventDescriptor{EventType: eventType, AggregateType: aggregate, Topic: topic}
}

// Topics lists the distinct destination topics, sorted.
func (r *EventRegistry) Topics() []string {
	set := map[string]bool{}
	for _, desc := range r.descriptors {
		set[desc.Topic] = true
	}
	topics := make([]string, 0, len(set))
	for topic := range set {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks the row against its descriptor and decodes the payload for
// the envelope's version. Every failure is non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	resolved, err := r.resolve(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return resolved, nil
}

func (r *EventRegistry) resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.descriptors[event.EventType]
	switch {
	case !ok:
		return nil, fmt.Errorf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, errors.New("missing aggregate_id")
	}

	envelope, _, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", event.EventType, err)
	}
	payload, err := r.decoders.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, err
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
