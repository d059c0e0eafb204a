package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/ombhut175/RetailFlow-sub002/internal/stock"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
)

// maxReconcileErrors bounds how many per-product failures are kept for the job error.
const maxReconcileErrors = 20

type stockReconciler interface {
	ForEachProduct(ctx context.Context, fn func(productID uuid.UUID) error) error
	Reconcile(ctx context.Context, productID uuid.UUID) (*stock.ReconcileReport, error)
}

// StockReconcileJobParams configures the nightly ledger replay.
type StockReconcileJobParams struct {
	Logger *logger.Logger
	Stock  stockReconciler
}

// NewStockReconcileJob replays every live stock ledger and fails when any product drifts.
func NewStockReconcileJob(params StockReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock service required")
	}
	return &stockReconcileJob{logg: params.Logger, stock: params.Stock, now: time.Now}, nil
}

type stockReconcileJob struct {
	logg  *logger.Logger
	stock stockReconciler
	now   func() time.Time
}

func (j *stockReconcileJob) Name() string { return "stock-reconcile" }

func (j *stockReconcileJob) Run(ctx context.Context) error {
	var (
		checked    int
		unbalanced int
		failed     int
		errs       error
	)
	started := j.now()

	walkErr := j.stock.ForEachProduct(ctx, func(productID uuid.UUID) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		checked++
		report, err := j.stock.Reconcile(ctx, productID)
		if err != nil {
			failed++
			if failed <= maxReconcileErrors {
				errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", productID, err))
			}
			return nil
		}
		if !report.Balanced {
			unbalanced++
			logCtx := j.logg.WithProductID(ctx, productID.String())
			logCtx = j.logg.WithFields(logCtx, map[string]any{
				"available_drift": report.AvailableDrift(),
				"reserved_drift":  report.ReservedDrift(),
				"sequence_gaps":   report.SequenceGaps,
			})
			j.logg.Warn(logCtx, "stock drift detected")
		}
		return nil
	})
	errs = multierr.Append(errs, walkErr)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked":     checked,
		"unbalanced":  unbalanced,
		"failed":      failed,
		"duration_ms": j.now().Sub(started).Milliseconds(),
	})
	j.logg.Info(logCtx, "stock reconcile complete")

	if unbalanced > 0 {
		errs = multierr.Append(errs, fmt.Errorf("%d of %d products out of balance", unbalanced, checked))
	}
	return errs
}
