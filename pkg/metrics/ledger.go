package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// LedgerMetrics records stock ledger operation counts and latency.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	lowStock   prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retailflow_stock_operations_total",
		Help: "Stock ledger operations by operation and outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retailflow_stock_operation_duration_seconds",
		Help:    "Duration of stock ledger operations in seconds.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation"})
	lowStock := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retailflow_stock_low_transitions_total",
		Help: "Mutations that moved a product below its minimum stock level.",
	})
	reg.MustRegister(operations, duration, lowStock)
	return &LedgerMetrics{
		operations: operations,
		duration:   duration,
		lowStock:   lowStock,
	}
}

// Observe records one finished operation.
func (m *LedgerMetrics) Observe(operation, outcome string, elapsed time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	op := normalizeLabel(operation)
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// IncLowStock counts a transition into low stock.
func (m *LedgerMetrics) IncLowStock() {
	if m == nil || m.lowStock == nil {
		return
	}
	m.lowStock.Inc()
}
