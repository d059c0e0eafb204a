package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ombhut175/RetailFlow-sub002/api/routes"
	products "github.com/ombhut175/RetailFlow-sub002/internal/products"
	"github.com/ombhut175/RetailFlow-sub002/internal/purchaseorders"
	"github.com/ombhut175/RetailFlow-sub002/internal/stock"
	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
	"github.com/ombhut175/RetailFlow-sub002/pkg/metrics"
	"github.com/ombhut175/RetailFlow-sub002/pkg/migrate"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox"
	"github.com/ombhut175/RetailFlow-sub002/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	// Redis is optional for the API: without it idempotent replay and the
	// export throttle are switched off.
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured; idempotency and rate limits disabled")
	}

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	productService, err := products.NewService(products.NewRepository(dbClient.DB()), dbClient, cfg.Stock.DefaultMinimumLevel)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	stockService, err := stock.NewService(stock.ServiceParams{
		Tx:      dbClient,
		Repo:    stock.NewRepository(dbClient.DB()),
		Outbox:  emitter,
		Metrics: ledgerMetrics,
		Logger:  logg,
		Config:  cfg.Stock,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}

	numbers, err := purchaseorders.NewNumberGenerator(cfg.Purchasing.NodeID)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase order numbering", err)
		os.Exit(1)
	}
	purchaseOrderService, err := purchaseorders.NewService(purchaseorders.ServiceParams{
		Tx:      dbClient,
		Repo:    purchaseorders.NewRepository(dbClient.DB()),
		Stock:   stockService,
		Outbox:  emitter,
		Numbers: numbers,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase order service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promhttp.Handler(),
			stockService,
			productService,
			purchaseOrderService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
		return
	}
	logg.Info(ctx, "api server stopped")
}
