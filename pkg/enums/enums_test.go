package enums

import "testing"

func TestParseStockTransactionType(t *testing.T) {
	got, err := ParseStockTransactionType(" reserved ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != StockTransactionReserved {
		t.Fatalf("expected RESERVED, got %s", got)
	}
	if _, err := ParseStockTransactionType("TRANSFER"); err == nil {
		t.Fatal("expected unknown type to fail")
	}
}

func TestParseStockReferenceType(t *testing.T) {
	for _, raw := range []string{"PURCHASE", "sale", "Adjustment", "RETURN"} {
		got, err := ParseStockReferenceType(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if !got.IsValid() {
			t.Fatalf("expected %q to be valid", got)
		}
	}
	if StockReferenceType("GIFT").IsValid() {
		t.Fatal("expected GIFT to be invalid")
	}
}

func TestParseConsumeSource(t *testing.T) {
	if got, _ := ParseConsumeSource("Reserved"); got != ConsumeFromReserved {
		t.Fatalf("expected reserved, got %q", got)
	}
	if _, err := ParseConsumeSource("fifo"); err == nil {
		t.Fatal("expected fifo to fail")
	}
}

func TestPurchaseOrderStatusCanReceive(t *testing.T) {
	cases := map[PurchaseOrderStatus]bool{
		PurchaseOrderStatusDraft:             false,
		PurchaseOrderStatusOrdered:           true,
		PurchaseOrderStatusPartiallyReceived: true,
		PurchaseOrderStatusReceived:          false,
		PurchaseOrderStatusCancelled:         false,
	}
	for status, want := range cases {
		if status.CanReceive() != want {
			t.Fatalf("status %s expected CanReceive=%v", status, want)
		}
	}
}

func TestOutboxEnums(t *testing.T) {
	if _, err := ParseOutboxEventType("stock_low"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseOutboxAggregateType("vendor_order"); err == nil {
		t.Fatal("expected unknown aggregate to fail")
	}
	if reason, err := ParseOutboxDLQErrorReason("max_attempts"); err != nil || reason != OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected dlq reason %q (%v)", reason, err)
	}
	if _, err := ParseOutboxDLQErrorReason("timeout"); err == nil {
		t.Fatal("expected unknown dlq reason to fail")
	}
}
