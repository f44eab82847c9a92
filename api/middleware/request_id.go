package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/norberto-e-888/pos-app/pkg/logger"
)

const (
	requestIDHeader   = "X-Request-Id"
	maxRequestIDBytes = 128
)

// RequestID echoes a caller-supplied X-Request-Id or mints one, and tags every
// log line of the request with it. Oversized or blank ids are replaced.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if id == "" || len(id) > maxRequestIDBytes {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
