package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mcoot/gamestats/internal/metrics"
)

// RouteFunc names the route a request matched, for metric labels
type RouteFunc func(r *http.Request) string

// Metrics records request counts, durations and in-flight requests
func Metrics(m *metrics.Metrics, route RouteFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPInFlight.Inc()
			defer m.HTTPInFlight.Dec()

			start := time.Now()
			wrapped := NewResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			name := route(r)
			m.HTTPRequests.WithLabelValues(r.Method, name, strconv.Itoa(wrapped.Status())).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
		})
	}
}
