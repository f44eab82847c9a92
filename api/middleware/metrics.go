package middleware

import (
	"net/http"
	"time"

	"github.com/norberto-e-888/pos-app/pkg/metrics"
)

// Metrics records one observation per request labelled by the matched route
// pattern, so order and product ids never become label values.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)
			m.Observe(r.Method, routePattern(r), rec.code(), time.Since(start))
		})
	}
}
