// Package metrics provides Prometheus instrumentation for the tracker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesRecorded counts trade records added, partitioned by op kind.
	TradesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinfolio_trades_recorded_total",
		Help: "Total number of trade records added",
	}, []string{"op"})

	// TradesDeleted counts trade records removed.
	TradesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinfolio_trades_deleted_total",
		Help: "Total number of trade records deleted",
	})

	// RebuildsTotal counts inventory reconstructions from trade history.
	RebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinfolio_inventory_rebuilds_total",
		Help: "Total number of inventory rebuilds",
	})

	// RebuildDuration tracks how long a full inventory rebuild takes.
	RebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "skinfolio_inventory_rebuild_duration_seconds",
		Help:    "Inventory rebuild duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// PriceFetches counts Steam web price fetch attempts by outcome.
	PriceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinfolio_price_fetches_total",
		Help: "Steam web price fetch attempts",
	}, []string{"outcome"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skinfolio_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinfolio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skinfolio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// SnapshotSaves counts snapshot writes by outcome.
	SnapshotSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinfolio_snapshot_saves_total",
		Help: "Snapshot save attempts",
	}, []string{"outcome"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
