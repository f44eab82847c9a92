package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/norberto-e-888/pos-app/internal/aggregation"
	"github.com/norberto-e-888/pos-app/internal/consumers/payments"
	"github.com/norberto-e-888/pos-app/internal/inventory"
	"github.com/norberto-e-888/pos-app/internal/orders"
	"github.com/norberto-e-888/pos-app/internal/products"
	"github.com/norberto-e-888/pos-app/internal/users"
	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/db"
	"github.com/norberto-e-888/pos-app/pkg/instance"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/metrics"
	"github.com/norberto-e-888/pos-app/pkg/migrate"
	"github.com/norberto-e-888/pos-app/pkg/outbox"
	"github.com/norberto-e-888/pos-app/pkg/outbox/idempotency"
	"github.com/norberto-e-888/pos-app/pkg/outbox/registry"
	"github.com/norberto-e-888/pos-app/pkg/redis"
	"github.com/norberto-e-888/pos-app/pkg/transport"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()
	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	conn, err := transport.Open(ctx, cfg, logg)
	requireResource(ctx, logg, "broker", err)
	defer func() {
		if err := conn.Close(); err != nil {
			logg.Error(ctx, "error closing broker", err)
		}
	}()

	gormDB := dbClient.DB()
	outboxService, err := outbox.NewService(outbox.ServiceParams{
		Tx:         dbClient,
		Repository: outbox.NewRepository(gormDB),
		Logger:     logg,
		MaxRetries: cfg.Outbox.TxMaxRetries,
	})
	requireResource(ctx, logg, "outbox service", err)

	userService, err := users.NewService(users.ServiceParams{
		Tx:         dbClient,
		Repository: users.NewRepository(gormDB),
		Outbox:     outboxService,
		JWT:        cfg.JWT,
		Logger:     logg,
	})
	requireResource(ctx, logg, "user service", err)

	inbox := outbox.NewInbox(gormDB)
	orderService, err := orders.NewService(orders.ServiceParams{
		Tx:                dbClient,
		Outbox:            outboxService,
		Repository:        orders.NewRepository(gormDB),
		Ledger:            inventory.NewLedger(),
		Catalog:           products.NewRepository(gormDB),
		Users:             userService,
		Inbox:             inbox,
		IdempotencyWindow: cfg.Orders.IdempotencyWindow,
		TxAttempts:        cfg.Outbox.TxMaxRetries,
		Logger:            logg,
	})
	requireResource(ctx, logg, "order service", err)

	projector, err := aggregation.NewProjector(aggregation.ProjectorParams{
		DB:     gormDB,
		Tx:     dbClient,
		Inbox:  inbox,
		Logger: logg,
	})
	requireResource(ctx, logg, "aggregation projector", err)

	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	consumer, err := payments.NewConsumer(payments.ConsumerParams{
		Bindings:    payments.Bindings(orderService, projector),
		Decoders:    registry.NewPaymentDecoders(),
		Guard:       guard,
		DeadLetters: outbox.NewDLQRepository(gormDB),
		Metrics:     metrics.NewConsumerMetrics(prometheus.DefaultRegisterer),
		Logger:      logg,
		MaxAttempts: cfg.Eventing.MaxDeliveryAttempts,
		BaseDelay:   cfg.Eventing.RetryBaseDelay,
		MaxDelay:    cfg.Eventing.RetryMaxDelay,
	})
	requireResource(ctx, logg, "payments consumer", err)

	service, err := NewService(ServiceParams{
		Logger:     logg,
		Subscriber: conn.Broker,
		Subscriptions: []Subscription{
			{Name: cfg.PubSub.PaymentsSubscription, Consumer: consumer},
		},
		Readiness: map[string]pinger{
			"database": dbClient.Ping,
			"redis":    redisClient.Ping,
			"broker":   conn.Ping,
		},
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"broker":      conn.Driver,
		"instance":    instance.ID(),
	})
	logg.Info(runCtx, "starting worker")

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error {
		return metrics.Serve(groupCtx, cfg.App.MetricsPort, prometheus.DefaultGatherer, logg)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
