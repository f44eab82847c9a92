package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/norberto-e-888/pos-app/api/middleware"
	"github.com/norberto-e-888/pos-app/api/responses"
	"github.com/norberto-e-888/pos-app/api/validators"
	"github.com/norberto-e-888/pos-app/internal/aggregation"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

// AggregationReader serves the per-customer payment projection.
type AggregationReader interface {
	Get(ctx context.Context, customerID uuid.UUID) (*aggregation.View, error)
}

// MyAggregation returns the caller's own aggregation.
func MyAggregation(reader AggregationReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "aggregation unavailable"))
			return
		}
		principal, ok := middleware.PrincipalFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		writeAggregation(w, r, reader, logg, principal.ID)
	}
}

// CustomerAggregation returns any customer's aggregation (admin).
func CustomerAggregation(reader AggregationReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "aggregation unavailable"))
			return
		}
		customerID, err := validators.ParseUUIDParam(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAggregation(w, r, reader, logg, customerID)
	}
}

func writeAggregation(w http.ResponseWriter, r *http.Request, reader AggregationReader, logg *logger.Logger, customerID uuid.UUID) {
	view, err := reader.Get(r.Context(), customerID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, view)
}
