package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the relay. Each server carries
// its own registry so tests can create servers independently.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	activeSessions  prometheus.Gauge
	sessionsCreated prometheus.Counter
	authFailures    *prometheus.CounterVec // by rejection reason

	// Broadcast metrics
	messagesBroadcast prometheus.Counter
	messagesDelivered prometheus.Counter
	deliveryFailures  prometheus.Counter
	broadcastFanout   prometheus.Histogram

	// History metrics
	historySize            prometheus.Gauge
	historyPersistFailures prometheus.Counter
}

// NewMetrics creates a new metrics instance backed by its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chatrelay_active_sessions",
			Help: "Current number of authenticated sessions",
		}),
		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		authFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_auth_failures_total",
			Help: "Total number of rejected login attempts by reason",
		}, []string{"reason"}),
		messagesBroadcast: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_messages_broadcast_total",
			Help: "Total number of messages broadcast (unique messages, not deliveries)",
		}),
		messagesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_messages_delivered_total",
			Help: "Total number of messages delivered to clients",
		}),
		deliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_delivery_failures_total",
			Help: "Total number of failed per-recipient sends during broadcast",
		}),
		broadcastFanout: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatrelay_broadcast_fanout",
			Help:    "Number of clients that received each broadcast message",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),
		historySize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chatrelay_history_size",
			Help: "Current number of messages in the history log",
		}),
		historyPersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_history_persist_failures_total",
			Help: "Total number of failed history file rewrites",
		}),
	}
}

// Handler returns the HTTP handler exposing this instance's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordActiveSessions updates the active session count.
func (m *Metrics) RecordActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

// RecordSessionCreated increments the session creation counter.
func (m *Metrics) RecordSessionCreated() {
	m.sessionsCreated.Inc()
}

// RecordAuthFailure increments the rejection counter for a reason.
func (m *Metrics) RecordAuthFailure(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
}

// RecordBroadcast records one fan-out with its delivery and failure counts.
func (m *Metrics) RecordBroadcast(delivered, failed int) {
	m.messagesBroadcast.Inc()
	m.messagesDelivered.Add(float64(delivered))
	m.deliveryFailures.Add(float64(failed))
	m.broadcastFanout.Observe(float64(delivered))
}

// RecordHistorySize updates the history log size gauge.
func (m *Metrics) RecordHistorySize(size int) {
	m.historySize.Set(float64(size))
}

// RecordHistoryPersistFailure increments the failed-rewrite counter.
func (m *Metrics) RecordHistoryPersistFailure() {
	m.historyPersistFailures.Inc()
}
