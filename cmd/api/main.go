package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/norberto-e-888/pos-app/api/controllers"
	"github.com/norberto-e-888/pos-app/api/routes"
	"github.com/norberto-e-888/pos-app/internal/aggregation"
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
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	ledger := inventory.NewLedger()
	productRepo := products.NewRepository(gormDB)
	productService, err := products.NewService(products.ServiceParams{
		Tx:         dbClient,
		Repository: productRepo,
		Ledger:     ledger,
		Logger:     logg,
	})
	requireResource(ctx, logg, "product service", err)

	inbox := outbox.NewInbox(gormDB)
	orderService, err := orders.NewService(orders.ServiceParams{
		Tx:                dbClient,
		Outbox:            outboxService,
		Repository:        orders.NewRepository(gormDB),
		Ledger:            ledger,
		Catalog:           productRepo,
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

	handler := routes.NewRouter(routes.Dependencies{
		Config: cfg,
		Logger: logg,
		Readiness: map[string]controllers.Pinger{
			"database": dbClient,
		},
		Orders:      orderService,
		Products:    productService,
		Users:       userService,
		Aggregation: projector,
		Metrics:     metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Gatherer:    prometheus.DefaultGatherer,
	})

	addr := fmt.Sprintf(":%s", cfg.App.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(runCtx, "starting api server")

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "api server shut down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
