package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	httpRequestsTotal         *prometheus.CounterVec
	httpLatencySeconds        *prometheus.HistogramVec
	requestsRejectedTotal     *prometheus.CounterVec
	messagesSentTotal         prometheus.Counter
	messageEditsTotal         prometheus.Counter
	notificationsCreatedTotal prometheus.Counter
	wsClientsActive           prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		requestsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_requests_rejected_total",
			Help: "Requests short-circuited by the middleware chain, by reason.",
		}, []string{"reason"})

		messagesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_sent_total",
			Help: "Messages successfully created.",
		})

		messageEditsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_message_edits_total",
			Help: "Content-changing message edits recorded in history.",
		})

		notificationsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_notifications_created_total",
			Help: "Notifications created alongside new messages.",
		})

		wsClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_ws_clients_active",
			Help: "Currently connected notification websocket clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			requestsRejectedTotal,
			messagesSentTotal,
			messageEditsTotal,
			notificationsCreatedTotal,
			wsClientsActive,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// RequestsRejected exposes the middleware rejection counter.
func RequestsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsRejectedTotal
}

// MessagesSent exposes the sent-message counter.
func MessagesSent() prometheus.Counter {
	RegisterMetrics()
	return messagesSentTotal
}

// MessageEdits exposes the edit counter.
func MessageEdits() prometheus.Counter {
	RegisterMetrics()
	return messageEditsTotal
}

// NotificationsCreated exposes the notification counter.
func NotificationsCreated() prometheus.Counter {
	RegisterMetrics()
	return notificationsCreatedTotal
}

// WSClientsActive exposes the websocket client gauge.
func WSClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return wsClientsActive
}
