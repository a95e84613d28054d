// Package metrics wires the daemon's Prometheus collectors on a private
// registry (never the global default, so multiple daemons in one
// process never collide on metric names).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the daemon exposes on its admin surface.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	HandshakeRejections *prometheus.CounterVec

	MessagesValidated *prometheus.CounterVec
	MessagesRejected  *prometheus.CounterVec

	QueueDepth     prometheus.Gauge
	QueueEvictions prometheus.Counter

	RelayConnected  prometheus.Gauge
	RelayReconnects prometheus.Counter
	RelayBytesSent  prometheus.Counter
}

// New builds a fresh registry and collector set under namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently connected sources.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted source connections.",
		}),
		HandshakeRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_rejections_total",
			Help:      "Total number of connections rejected during handshake, labeled by reason.",
		}, []string{"reason"}),

		MessagesValidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_validated_total",
			Help:      "Total number of client messages that passed payload validation.",
		}, []string{"source"}),
		MessagesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rejected_total",
			Help:      "Total number of client messages rejected, labeled by the wire error kind.",
		}, []string{"error"}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of messages buffered awaiting a relay connection.",
		}),
		QueueEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_evictions_total",
			Help:      "Total number of messages dropped because the buffer was full.",
		}),

		RelayConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_connected",
			Help:      "1 if the outbound relay connection is currently established, 0 otherwise.",
		}),
		RelayReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_reconnects_total",
			Help:      "Total number of times the relay connection was (re)established.",
		}),
		RelayBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_bytes_sent_total",
			Help:      "Total number of bytes written to the relay connection.",
		}),
	}

	registry.MustRegister(
		m.ConnectionsActive,
		m.ConnectionsTotal,
		m.HandshakeRejections,
		m.MessagesValidated,
		m.MessagesRejected,
		m.QueueDepth,
		m.QueueEvictions,
		m.RelayConnected,
		m.RelayReconnects,
		m.RelayBytesSent,
	)

	return m
}

// Registry returns the private registry collectors are registered on, for
// wiring into an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
