package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's prometheus instruments. Each server carries
// its own registry so tests can build servers side by side.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	movesTotal      *prometheus.CounterVec
	subscribers     prometheus.Gauge
}

// NewMetrics builds the instrument set on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chessticulate_http_requests_total",
			Help: "HTTP requests processed, by method, path and status.",
		}, []string{"method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chessticulate_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		movesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chessticulate_moves_total",
			Help: "Moves submitted, by outcome.",
		}, []string{"outcome"}),
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chessticulate_game_subscribers",
			Help: "Live game update subscribers across SSE and websocket.",
		}),
	}
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// CountMove records a submitted move: "ok", "rejected" or "error".
func (m *Metrics) CountMove(outcome string) {
	m.movesTotal.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry in prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// normalizePath collapses ID path segments so metric labels stay bounded.
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := strconv.ParseInt(seg, 10, 64); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}
