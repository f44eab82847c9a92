package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/norberto-e-888/pos-app/pkg/logger"
)

// Handler exposes the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve runs a /metrics listener for background workers until ctx is done. An empty
// port disables it.
func Serve(ctx context.Context, port string, gatherer prometheus.Gatherer, logg *logger.Logger) error {
	if port == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	srv := &http.Server{
		Addr:              net.JoinHostPort("", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "port", port), "metrics listener started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
