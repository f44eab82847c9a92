package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/norberto-e-888/pos-app/api/responses"
	"github.com/norberto-e-888/pos-app/pkg/config"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is anything /health/ready can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-POS-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and reports 503 when any is down. Nil
// entries are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	names := make([]string, 0, len(deps))
	for name, dep := range deps {
		if dep != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-POS-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(names))
		var failed []string
		for _, name := range names {
			if err := deps[name].Ping(ctx); err != nil {
				checks[name] = "down"
				failed = append(failed, name)
				continue
			}
			checks[name] = "up"
		}

		if len(failed) > 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").
				WithDetails(map[string]any{"checks": checks}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
