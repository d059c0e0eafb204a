package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
	"github.com/ombhut175/RetailFlow-sub002/pkg/metrics"
	"github.com/ombhut175/RetailFlow-sub002/pkg/migrate"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox/registry"
	"github.com/ombhut175/RetailFlow-sub002/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	var dlq deadLetterCommand
	flag.BoolVar(&dlq.List, "dlq-list", false, "print dead lettered events as JSON lines and exit")
	flag.StringVar(&dlq.EventType, "dlq-type", "", "limit -dlq-list to one event type")
	flag.IntVar(&dlq.Limit, "dlq-limit", 50, "maximum entries printed by -dlq-list")
	flag.StringVar(&dlq.Requeue, "requeue", "", "event id to move from the dead letter table back to the outbox")
	flag.Parse()

	bootLog := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		bootLog.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		bootLog.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind})

	if err := run(ctx, cfg, logg, dlq); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shut down")
}

// run wires the publisher. Dead letter commands only need the database and
// return before Pub/Sub is contacted.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, dlq deadLetterCommand) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() { err = errors.Join(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	dlqRepo := outbox.NewDLQRepository(dbClient.DB())
	if dlq.requested() {
		return dlq.run(ctx, dlqRepo, os.Stdout)
	}

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer func() { err = errors.Join(err, pubsubClient.Close()) }()

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      events,
		DLQRepository: dlqRepo,
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		go metrics.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Path, prometheus.DefaultGatherer, logg)
	}
	logg.Info(logg.WithField(ctx, "topics", events.Topics()), "starting outbox publisher")
	return service.Run(ctx)
}
