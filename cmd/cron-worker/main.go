package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/norberto-e-888/pos-app/internal/cron"
	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/db"
	"github.com/norberto-e-888/pos-app/pkg/instance"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/metrics"
	"github.com/norberto-e-888/pos-app/pkg/migrate"
	"github.com/norberto-e-888/pos-app/pkg/outbox"
	"github.com/norberto-e-888/pos-app/pkg/redis"
)

func main() {
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
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	lock, err := cron.NewRedisLock(redisClient, lockKey(redisClient, cfg.App.Env), cfg.Cron.LockTTL, instance.ID())
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	backlogJob, err := cron.NewOutboxBacklogJob(cron.OutboxBacklogJobParams{
		Logger:      logg,
		Repository:  outboxRepo,
		Gauge:       metrics.NewRelayMetrics(prometheus.DefaultRegisterer),
		MaxAttempts: cfg.Outbox.MaxAttempts,
		WarnAfter:   cfg.Cron.BacklogWarnAfter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox backlog job", err)
		os.Exit(1)
	}
	pruneJob, err := cron.NewProcessedPruneJob(cron.ProcessedPruneJobParams{
		Logger:    logg,
		Inbox:     outbox.NewInbox(dbClient.DB()),
		Retention: cfg.Eventing.ProcessedRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create processed prune job", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(backlogJob, retentionJob, pruneJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})
	logg.Info(ctx, "starting cron worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error {
		return metrics.Serve(groupCtx, cfg.App.MetricsPort, prometheus.DefaultGatherer, logg)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(client *redis.Client, env string) string {
	if env == "" {
		env = "local"
	}
	return client.LockKey("cron-worker", env)
}
