package cron

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/ombhut175/RetailFlow-sub002/internal/stock"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
	"github.com/ombhut175/RetailFlow-sub002/pkg/mailer"
)

const defaultDigestLimit = 200

type lowStockLister interface {
	ListLowStock(ctx context.Context, limit int) ([]stock.SummaryDTO, error)
}

type digestSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// LowStockDigestJobParams configures the low-stock email digest.
type LowStockDigestJobParams struct {
	Logger     *logger.Logger
	Stock      lowStockLister
	Mailer     digestSender
	Recipients []string
	Limit      int
}

// NewLowStockDigestJob emails the products currently below their minimum level.
func NewLowStockDigestJob(params LowStockDigestJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if len(params.Recipients) == 0 {
		return nil, fmt.Errorf("at least one recipient required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultDigestLimit
	}
	return &lowStockDigestJob{
		logg:       params.Logger,
		stock:      params.Stock,
		mailer:     params.Mailer,
		recipients: params.Recipients,
		limit:      limit,
		now:        time.Now,
	}, nil
}

type lowStockDigestJob struct {
	logg       *logger.Logger
	stock      lowStockLister
	mailer     digestSender
	recipients []string
	limit      int
	now        func() time.Time
}

func (j *lowStockDigestJob) Name() string { return "low-stock-digest" }

func (j *lowStockDigestJob) Run(ctx context.Context) error {
	rows, err := j.stock.ListLowStock(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list low stock: %w", err)
	}
	if len(rows) == 0 {
		j.logg.Info(ctx, "no low stock products; digest skipped")
		return nil
	}

	msg := buildDigest(rows, j.now().UTC())
	msg.To = j.recipients
	if err := j.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send low stock digest: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"products":   len(rows),
		"recipients": len(j.recipients),
	})
	j.logg.Info(logCtx, "low stock digest sent")
	return nil
}

func buildDigest(rows []stock.SummaryDTO, at time.Time) mailer.Message {
	subject := fmt.Sprintf("Low stock: %d product(s) below minimum (%s)", len(rows), at.Format("2006-01-02"))

	var text strings.Builder
	var body strings.Builder
	fmt.Fprintf(&text, "%d product(s) are below their minimum stock level.\n\n", len(rows))
	body.WriteString("<table><thead><tr><th>SKU</th><th>Product</th><th>Available</th><th>Reserved</th><th>Total</th><th>Minimum</th></tr></thead><tbody>")
	for _, row := range rows {
		fmt.Fprintf(&text, "%s  %s  total=%d minimum=%d (available=%d reserved=%d)\n",
			row.SKU, row.ProductName, row.QuantityTotal, row.MinimumStockLevel, row.QuantityAvailable, row.QuantityReserved)
		fmt.Fprintf(&body, "<tr><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>",
			html.EscapeString(row.SKU), html.EscapeString(row.ProductName),
			row.QuantityAvailable, row.QuantityReserved, row.QuantityTotal, row.MinimumStockLevel)
	}
	body.WriteString("</tbody></table>")

	return mailer.Message{Subject: subject, Text: text.String(), HTML: body.String()}
}
