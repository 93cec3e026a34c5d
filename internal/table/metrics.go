package table

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are shared by every table in the process.
type Metrics struct {
	HandsCompleted prometheus.Counter
	ActionsTotal   *prometheus.CounterVec
	HandDuration   prometheus.Histogram
}

// NewMetrics registers table metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HandsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_hands_completed_total",
			Help: "Hands played to completion.",
		}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cardroom_actions_total",
			Help: "Accepted player actions by kind.",
		}, []string{"action"}),
		HandDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardroom_hand_duration_seconds",
			Help:    "Wall-clock duration of completed hands.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}
