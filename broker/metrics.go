package broker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the broker's Prometheus instruments, grounded on the
// promauto registration style used for connection/message counters
// elsewhere in the pack.
type Metrics struct {
	connectionsAccepted prometheus.Counter
	connectionsRejected prometheus.Counter
	connectionsActive   prometheus.Gauge

	messagesPublished prometheus.Counter
	messagesDelivered prometheus.Counter
	messagesRetained  prometheus.Gauge
	messagesDropped   *prometheus.CounterVec

	deliveryQueueDepth prometheus.Gauge
	ackMisses          prometheus.Counter
	ackUnresponsive    prometheus.Counter

	storeFreeBytes  prometheus.Gauge
	storeTotalBytes prometheus.Gauge
}

// NewMetrics registers and returns the broker's instrument set against
// the default Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		connectionsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "smq_broker_connections_accepted_total",
			Help: "Total number of accepted client connections.",
		}),
		connectionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "smq_broker_connections_rejected_total",
			Help: "Total number of connections rejected before becoming active (missing or bad CONNECT, auth failure, duplicate client id).",
		}),
		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "smq_broker_connections_active",
			Help: "Number of connections currently in the ACTIVE state.",
		}),
		messagesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "smq_broker_messages_published_total",
			Help: "Total number of PUBLISH messages accepted from clients.",
		}),
		messagesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "smq_broker_messages_delivered_total",
			Help: "Total number of messages successfully written to a subscriber.",
		}),
		messagesRetained: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "smq_broker_messages_retained",
			Help: "Number of queue messages currently retained awaiting a subscriber.",
		}),
		messagesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "smq_broker_messages_dropped_total",
			Help: "Total number of messages dropped, labeled by reason.",
		}, []string{"reason"}),
		deliveryQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "smq_broker_delivery_queue_depth",
			Help: "Current number of delivery tasks queued for the send-side worker pool.",
		}),
		ackMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "smq_broker_ack_misses_total",
			Help: "Total number of AT_LEAST_ONCE deliveries that timed out unacked.",
		}),
		ackUnresponsive: promauto.NewCounter(prometheus.CounterOpts{
			Name: "smq_broker_ack_unresponsive_total",
			Help: "Total number of connections closed for exceeding the max ack miss count.",
		}),
		storeFreeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "smq_broker_store_free_bytes",
			Help: "Free bytes across the persistent store's buckets.",
		}),
		storeTotalBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "smq_broker_store_total_bytes",
			Help: "Total bytes across the persistent store's buckets.",
		}),
	}
}

// Handler returns the HTTP handler serving these metrics in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
