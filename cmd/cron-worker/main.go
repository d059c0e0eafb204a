package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ombhut175/RetailFlow-sub002/internal/cron"
	"github.com/ombhut175/RetailFlow-sub002/internal/stock"
	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
	"github.com/ombhut175/RetailFlow-sub002/pkg/mailer"
	"github.com/ombhut175/RetailFlow-sub002/pkg/metrics"
	"github.com/ombhut175/RetailFlow-sub002/pkg/migrate"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox"
	"github.com/ombhut175/RetailFlow-sub002/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run every selected job a single time and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	var lock cron.Lock = cron.NoopLock{}
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		lock, err = cron.NewRedisLock(redisClient, lockName+":"+envOrLocal(cfg.App.Env), cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "redis not configured; cron runs without a distributed lock")
	}

	stockService, err := stock.NewService(stock.ServiceParams{
		Tx:      dbClient,
		Repo:    stock.NewRepository(dbClient.DB()),
		Outbox:  outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Metrics: metrics.NewLedgerMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
		Config:  cfg.Stock,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient, stockService)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron registry", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        registry.Names(),
	})

	if *once {
		logg.Info(ctx, "running cron jobs once")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron run failed", err)
			os.Exit(1)
		}
		return
	}

	if cfg.Metrics.Enabled {
		go metrics.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Path, prometheus.DefaultGatherer, logg)
	}
	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildRegistry registers every job the configuration can support, then
// narrows the set to RETAILFLOW_CRON_JOBS when it is given.
func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, stockService stock.Service) (*cron.Registry, error) {
	registry := cron.NewRegistry()

	reconcile, err := cron.NewStockReconcileJob(cron.StockReconcileJobParams{Logger: logg, Stock: stockService})
	if err != nil {
		return nil, err
	}
	registry.Register(reconcile)

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    logg,
		Outbox:    outbox.NewRepository(dbClient.DB()),
		DLQ:       outbox.NewDLQRepository(dbClient.DB()),
		Retention: cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, err
	}
	registry.Register(retention)

	if cfg.Mail.Enabled() {
		mail, err := mailer.New(cfg.Mail)
		if err != nil {
			return nil, err
		}
		digest, err := cron.NewLowStockDigestJob(cron.LowStockDigestJobParams{
			Logger:     logg,
			Stock:      stockService,
			Mailer:     mail,
			Recipients: cfg.Mail.RecipientList(),
			Limit:      cfg.Cron.DigestLimit,
		})
		if err != nil {
			return nil, err
		}
		registry.Register(digest)
	} else {
		logg.Warn(context.Background(), "mail not configured; low-stock digest disabled")
	}

	return registry.Only(cfg.Cron.JobList()...)
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
