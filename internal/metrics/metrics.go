package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chatrelay"

// Set holds the server's instruments. All of them are updated from the hub
// goroutine; prometheus types are safe for the scrape reads.
type Set struct {
	ConnectedUsers  prometheus.Gauge
	BroadcastsTotal prometheus.Counter
	DroppedSends    prometheus.Counter
	HistoryLength   prometheus.Gauge
}

// New registers the instrument set with the given registerer.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)

	return &Set{
		ConnectedUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_users",
			Help:      "Number of currently registered users.",
		}),
		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Frames broadcast to connected users.",
		}),
		DroppedSends: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_sends_total",
			Help:      "Outbound frames dropped because a recipient queue was full.",
		}),
		HistoryLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_length",
			Help:      "Frames retained in the replay history.",
		}),
	}
}
