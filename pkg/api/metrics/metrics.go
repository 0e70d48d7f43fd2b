// Package metrics defines the Prometheus instrumentation for the API
// service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "screenlake_api_build_info",
			Help: "Build information of the Screenlake API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenlake_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screenlake_api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screenlake_api_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	WarehouseQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screenlake_api_warehouse_query_duration_seconds",
			Help:    "Duration of warehouse queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WarehouseQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenlake_api_warehouse_query_errors_total",
			Help: "Total number of failed warehouse queries by failure kind",
		},
		[]string{"kind"},
	)

	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenlake_api_turns_total",
			Help: "Total number of completed turns by terminal state and failure code",
		},
		[]string{"state", "code"},
	)

	TurnAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screenlake_api_turn_attempts",
			Help:    "Warehouse executions consumed per turn",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9},
		},
	)

	RelevanceScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screenlake_api_relevance_score",
			Help:    "Relevance scores assigned by the judge",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
	)
)

// RecordWarehouseQuery records one direct query execution.
func RecordWarehouseQuery(duration time.Duration, kind string) {
	WarehouseQueryDuration.Observe(duration.Seconds())
	if kind != "" {
		WarehouseQueryErrors.WithLabelValues(kind).Inc()
	}
}

// RecordTurn records the terminal state of one agent turn.
func RecordTurn(state, code string, score float64, attempts int) {
	TurnsTotal.WithLabelValues(state, code).Inc()
	if attempts > 0 {
		TurnAttempts.Observe(float64(attempts))
	}
	if score > 0 {
		RelevanceScore.Observe(score)
	}
}

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}
