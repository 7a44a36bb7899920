// Package metricsx defines the client's optional Prometheus metrics
// (Section 4.13). Metrics are off the hot path: the conversation engine
// calls Collector methods directly, no sampling or batching involved.
package metricsx

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ipk24chat/client/internal/message"
)

const (
	namespace = "ipk24chat"
	subsystem = "client"
)

const labelKind = "kind"

// Collector holds all client Prometheus metrics.
type Collector struct {
	// MessagesSent counts outgoing messages transmitted, by kind.
	MessagesSent *prometheus.CounterVec

	// MessagesReceived counts inbound messages accepted (after duplicate
	// suppression), by kind.
	MessagesReceived *prometheus.CounterVec

	// Retransmissions counts datagram-binding retransmissions triggered
	// by a confirmation timeout.
	Retransmissions prometheus.Counter

	// DuplicatesSuppressed counts inbound datagrams whose ID had already
	// been seen and were dropped instead of being delivered.
	DuplicatesSuppressed prometheus.Counter

	// ConfirmLatency observes the time between sending a message and
	// receiving its Confirm, on the datagram binding.
	ConfirmLatency prometheus.Histogram
}

// NewCollector creates a Collector with all client metrics registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.MessagesSent,
		c.MessagesReceived,
		c.Retransmissions,
		c.DuplicatesSuppressed,
		c.ConfirmLatency,
	)

	return c
}

func newMetrics() *Collector {
	kindLabels := []string{labelKind}

	return &Collector{
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_sent_total",
			Help:      "Total protocol messages transmitted, by kind.",
		}, kindLabels),

		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_received_total",
			Help:      "Total protocol messages accepted for delivery, by kind.",
		}, kindLabels),

		Retransmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retransmissions_total",
			Help:      "Total datagram-binding retransmissions triggered by a confirmation timeout.",
		}),

		DuplicatesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duplicates_suppressed_total",
			Help:      "Total inbound datagrams dropped as already-seen duplicates.",
		}),

		ConfirmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "confirm_latency_seconds",
			Help:      "Time between sending a message and receiving its Confirm.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// IncSent increments the sent-messages counter for kind.
func (c *Collector) IncSent(kind message.Kind) {
	c.MessagesSent.WithLabelValues(kind.String()).Inc()
}

// IncReceived increments the received-messages counter for kind.
func (c *Collector) IncReceived(kind message.Kind) {
	c.MessagesReceived.WithLabelValues(kind.String()).Inc()
}

// IncRetransmission increments the retransmissions counter.
func (c *Collector) IncRetransmission() {
	c.Retransmissions.Inc()
}

// IncDuplicateSuppressed increments the duplicate-suppressed counter.
func (c *Collector) IncDuplicateSuppressed() {
	c.DuplicatesSuppressed.Inc()
}

// ObserveConfirmLatencySeconds records one confirm round-trip latency.
func (c *Collector) ObserveConfirmLatencySeconds(seconds float64) {
	c.ConfirmLatency.Observe(seconds)
}
