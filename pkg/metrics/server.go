package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
)

// Serve exposes gatherer on addr+path until ctx is cancelled. Workers run it
// in a goroutine; a listener failure is logged and does not stop the worker.
func Serve(ctx context.Context, addr, path string, gatherer prometheus.Gatherer, logg *logger.Logger) {
	if addr == "" {
		return
	}
	if path == "" {
		path = "/metrics"
	}
	router := chi.NewRouter()
	router.Method(http.MethodGet, path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logCtx := logg.WithFields(ctx, map[string]any{"addr": addr, "path": path})
	logg.Info(logCtx, "metrics listener started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(logCtx, "metrics listener failed", err)
	}
}
