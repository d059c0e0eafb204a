package main

import (
	"context"
	"errors"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox/payloads"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox/registry"
)

// buildMessage keys every message by aggregate so a product's ledger events,
// or a purchase order's receipts, are delivered in commit order.
func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"version":        strconv.Itoa(resolved.Envelope.Version),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	switch payload := resolved.Payload.(type) {
	case *payloads.StockChangedEvent:
		attrs["sequence"] = strconv.FormatInt(payload.Sequence, 10)
		attrs["transaction_type"] = string(payload.TransactionType)
	case *payloads.StockLowEvent:
		attrs["sequence"] = strconv.FormatInt(payload.Sequence, 10)
	case *payloads.PurchaseOrderReceivedEvent:
		attrs["purchase_order_number"] = payload.Number
	}
	return &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  attrs,
		OrderingKey: event.AggregateID.String(),
	}
}

// gcpPublisher adapts *pubsub.Publisher to the publisher interface.
type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{p: p}
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return orderedResult{
		res:    g.p.Publish(ctx, msg),
		resume: func() { g.p.ResumePublish(msg.OrderingKey) },
	}
}

// orderedResult resumes the ordering key after a failed publish; Pub/Sub
// pauses a key on error and would reject the retry otherwise.
type orderedResult struct {
	res    *gcppubsub.PublishResult
	resume func()
}

func (r orderedResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := r.res.Get(ctx)
	if err != nil {
		r.resume()
	}
	return id, err
}
