package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ombhut175/RetailFlow-sub002/internal/stock"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
	"github.com/ombhut175/RetailFlow-sub002/pkg/mailer"
)

type fakeLowStock struct {
	rows  []stock.SummaryDTO
	err   error
	limit int
}

func (f *fakeLowStock) ListLowStock(_ context.Context, limit int) ([]stock.SummaryDTO, error) {
	f.limit = limit
	return f.rows, f.err
}

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func newDigestJob(t *testing.T, lister *fakeLowStock, mail *fakeMailer) *lowStockDigestJob {
	t.Helper()
	job, err := NewLowStockDigestJob(LowStockDigestJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Stock:      lister,
		Mailer:     mail,
		Recipients: []string{"ops@example.com"},
	})
	if err != nil {
		t.Fatalf("NewLowStockDigestJob: %v", err)
	}
	digest := job.(*lowStockDigestJob)
	digest.now = func() time.Time { return time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC) }
	return digest
}

func TestLowStockDigestSendsTable(t *testing.T) {
	lister := &fakeLowStock{rows: []stock.SummaryDTO{
		{SKU: "BOLT-10", ProductName: "Bolt <M10>", QuantityAvailable: 1, QuantityReserved: 2, QuantityTotal: 3, MinimumStockLevel: 10, IsLowStock: true},
		{SKU: "NUT-10", ProductName: "Nut", QuantityTotal: 0, MinimumStockLevel: 5, IsLowStock: true},
	}}
	mail := &fakeMailer{}
	job := newDigestJob(t, lister, mail)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if lister.limit != defaultDigestLimit {
		t.Fatalf("expected default limit, got %d", lister.limit)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(mail.sent))
	}
	msg := mail.sent[0]
	if msg.Subject != "Low stock: 2 product(s) below minimum (2026-03-02)" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if len(msg.To) != 1 || msg.To[0] != "ops@example.com" {
		t.Fatalf("unexpected recipients %v", msg.To)
	}
	if !strings.Contains(msg.HTML, "Bolt &lt;M10&gt;") {
		t.Fatalf("expected escaped product name in html: %s", msg.HTML)
	}
	if !strings.Contains(msg.Text, "NUT-10") {
		t.Fatalf("expected sku in text body: %s", msg.Text)
	}
}

func TestLowStockDigestSkipsWhenNothingLow(t *testing.T) {
	mail := &fakeMailer{}
	job := newDigestJob(t, &fakeLowStock{}, mail)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mail.sent) != 0 {
		t.Fatalf("expected no mail, got %d", len(mail.sent))
	}
}

func TestLowStockDigestPropagatesErrors(t *testing.T) {
	job := newDigestJob(t, &fakeLowStock{err: errors.New("db down")}, &fakeMailer{})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected list error")
	}

	job = newDigestJob(t, &fakeLowStock{rows: []stock.SummaryDTO{{SKU: "A"}}}, &fakeMailer{err: errors.New("smtp down")})
	if err := job.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Fatalf("expected send error, got %v", err)
	}

	if _, err := NewLowStockDigestJob(LowStockDigestJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Stock:  &fakeLowStock{},
		Mailer: &fakeMailer{},
	}); err == nil {
		t.Fatal("expected recipients error")
	}
}
