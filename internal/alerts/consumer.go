package alerts

import (
	"context"
	"fmt"
	"html"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
	"github.com/ombhut175/RetailFlow-sub002/pkg/mailer"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox/idempotency"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox/payloads"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox/registry"
)

const lowStockAlertConsumer = "low-stock-alerts"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type onceGuard interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (idempotency.Outcome, error)
}

// ConsumerParams wires the low-stock alert consumer.
type ConsumerParams struct {
	Subscription receiver
	Idempotency  onceGuard
	Mailer       sender
	Recipients   []string
	Logger       *logger.Logger
}

// Consumer turns stock_low events from the stock topic into alert mail, one
// per event id.
type Consumer struct {
	subscription receiver
	idempotency  onceGuard
	mailer       sender
	recipients   []string
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Subscription == nil {
		return nil, fmt.Errorf("stock subscription required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if len(params.Recipients) == 0 {
		return nil, fmt.Errorf("at least one recipient required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		mailer:       params.Mailer,
		recipients:   params.Recipients,
		decoders:     registry.PayloadDecoders(),
		logg:         params.Logger,
	}, nil
}

var _ onceGuard = (*idempotency.Manager)(nil)

// Run receives until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked. Malformed messages are
// acked and logged since redelivery cannot fix them.
func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	eventType := attrs["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventStockLow) {
		c.logg.Debug(logCtx, "skipping non low-stock event")
		return true
	}

	envelope, eventID, err := outbox.DecodeEnvelope(data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}

	event, err := registry.DecodeAs[payloads.StockLowEvent](c.decoders, enums.EventStockLow, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode low stock payload", err)
		return true
	}
	logCtx = c.logg.WithEventID(c.logg.WithProductID(logCtx, event.ProductID.String()), eventID.String())

	outcome, err := c.idempotency.Once(ctx, lowStockAlertConsumer, eventID, func(ctx context.Context) error {
		msg := buildAlert(event)
		msg.To = c.recipients
		return c.mailer.Send(ctx, msg)
	})
	if err != nil {
		c.logg.Error(logCtx, "low stock alert failed", err)
		return false
	}
	if outcome == idempotency.Duplicate {
		c.logg.Info(logCtx, "low stock event already alerted")
		return true
	}

	c.logg.Info(c.logg.WithField(logCtx, "sequence", event.Sequence), "low stock alert sent")
	return true
}

func buildAlert(event *payloads.StockLowEvent) mailer.Message {
	label := event.SKU
	if label == "" {
		label = event.ProductID.String()
	}
	subject := fmt.Sprintf("Low stock: %s at %d (minimum %d)", label, event.QuantityTotal, event.MinimumStockLevel)

	var text strings.Builder
	fmt.Fprintf(&text, "%s dropped below its minimum stock level.\n\n", label)
	fmt.Fprintf(&text, "On hand: %d\nMinimum: %d\nLedger sequence: %d\nDetected: %s\n",
		event.QuantityTotal, event.MinimumStockLevel, event.Sequence, event.DetectedAt.UTC().Format("2006-01-02 15:04 MST"))

	body := fmt.Sprintf("<p><strong>%s</strong> dropped below its minimum stock level.</p>"+
		"<ul><li>On hand: %d</li><li>Minimum: %d</li><li>Ledger sequence: %d</li></ul>",
		html.EscapeString(label), event.QuantityTotal, event.MinimumStockLevel, event.Sequence)

	return mailer.Message{Subject: subject, Text: text.String(), HTML: body}
}
