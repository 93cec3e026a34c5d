package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the hub's observability surface, registered on the
// process registry and served at /metrics.
type Metrics struct {
	ConnectedClients prometheus.Gauge
	MessagesIn       prometheus.Counter
	MessagesOut      prometheus.Counter
	SlowClientDrops  prometheus.Counter
}

// NewMetrics registers the hub metrics on reg. Pass a fresh registry
// in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cardroom_connected_clients",
			Help: "Number of live websocket connections.",
		}),
		MessagesIn: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_messages_in_total",
			Help: "Frames received from clients.",
		}),
		MessagesOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_messages_out_total",
			Help: "Frames enqueued to clients.",
		}),
		SlowClientDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_slow_client_drops_total",
			Help: "Connections closed because their send queue overflowed.",
		}),
	}
}
