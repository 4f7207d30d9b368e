package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "voidnet"

// Reasons a connection is refused or a message is dropped, used as metric labels.
const (
	refusedAdmission = "admission"
	refusedFull      = "full"

	droppedMalformed    = "malformed"
	droppedUnknown      = "unknown"
	droppedVerification = "verification"
	droppedUnverified   = "unverified"
	droppedStale        = "stale"
	droppedUnrouted     = "unrouted"
)

type metrics struct {
	connected   prometheus.Gauge
	accepted    prometheus.Counter
	refused     *prometheus.CounterVec
	dispatched  *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	disconnects *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "connected_clients",
			Help:      "Number of slots whose client has authenticated",
		}),
		accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "accepted_connections_total",
			Help:      "Total number of TCP connections assigned a slot",
		}),
		refused: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "refused_connections_total",
			Help:      "Total number of TCP connections closed without a slot",
		}, []string{"reason"}),
		dispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "dispatched_messages_total",
			Help:      "Total number of messages handed to a handler",
		}, []string{"channel"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "dropped_messages_total",
			Help:      "Total number of inbound messages discarded before reaching a handler",
		}, []string{"reason"}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "disconnects_total",
			Help:      "Total number of connections released, by reason",
		}, []string{"reason"}),
	}
}
