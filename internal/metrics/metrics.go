package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the relay
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	SessionsReaped prometheus.Counter

	// Subscriber metrics
	SubscribersConnected *prometheus.GaugeVec

	// Broadcast metrics
	BroadcastsTotal    *prometheus.CounterVec
	FramesDroppedTotal prometheus.Counter

	// Chat metrics
	ChatRequestsTotal *prometheus.CounterVec

	// Upstream metrics
	UpstreamRequestsTotal *prometheus.CounterVec
	UpstreamDuration      prometheus.Histogram
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_sessions_active",
				Help: "Number of currently live sessions",
			},
		),
		SessionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_sessions_total",
				Help: "Total number of sessions created",
			},
		),
		SessionsReaped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_sessions_reaped_total",
				Help: "Total number of empty sessions reaped",
			},
		),

		SubscribersConnected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_subscribers_connected",
				Help: "Number of connected push subscribers",
			},
			[]string{"transport"},
		),

		BroadcastsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_broadcasts_total",
				Help: "Total number of broadcast frames by scope and type",
			},
			[]string{"scope", "type"},
		),
		FramesDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_frames_dropped_total",
				Help: "Total number of frames dropped on subscriber write failure",
			},
		),

		ChatRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_chat_requests_total",
				Help: "Total number of chat requests by outcome",
			},
			[]string{"status"},
		),

		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_upstream_requests_total",
				Help: "Total number of upstream completion requests by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		UpstreamDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_upstream_duration_seconds",
				Help:    "Duration of upstream completion requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.SessionsActive)
	m.registry.MustRegister(m.SessionsTotal)
	m.registry.MustRegister(m.SessionsReaped)
	m.registry.MustRegister(m.SubscribersConnected)
	m.registry.MustRegister(m.BroadcastsTotal)
	m.registry.MustRegister(m.FramesDroppedTotal)
	m.registry.MustRegister(m.ChatRequestsTotal)
	m.registry.MustRegister(m.UpstreamRequestsTotal)
	m.registry.MustRegister(m.UpstreamDuration)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
