package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/db"
	"github.com/norberto-e-888/pos-app/pkg/instance"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/metrics"
	"github.com/norberto-e-888/pos-app/pkg/migrate"
	"github.com/norberto-e-888/pos-app/pkg/outbox"
	"github.com/norberto-e-888/pos-app/pkg/outbox/registry"
	"github.com/norberto-e-888/pos-app/pkg/transport"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
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

	conn, err := transport.Open(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap broker", err)
		os.Exit(1)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logg.Error(context.Background(), "error closing broker", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg.Outbox,
		Logger:        logg,
		DB:            dbClient,
		Publisher:     conn.Broker,
		BrokerPing:    conn.Ping,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewRelayMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "outbox-publisher",
		"broker":      conn.Driver,
		"instance":    instance.ID(),
	})
	logg.Info(ctx, "starting outbox publisher")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error {
		return metrics.Serve(groupCtx, cfg.App.MetricsPort, prometheus.DefaultGatherer, logg)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}
