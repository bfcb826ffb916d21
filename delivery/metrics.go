package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	publishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lodgechat",
		Subsystem: "delivery",
		Name:      "published_total",
		Help:      "Messages handed to the dispatcher.",
	})
	deliveredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lodgechat",
		Subsystem: "delivery",
		Name:      "delivered_total",
		Help:      "Messages handed to subscriber callbacks.",
	})
	droppedStreams = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lodgechat",
		Subsystem: "delivery",
		Name:      "dropped_streams_total",
		Help:      "Streams closed because their buffer overflowed.",
	})
	activeSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lodgechat",
		Subsystem: "delivery",
		Name:      "active_subscriptions",
		Help:      "Subscriptions that have not been canceled.",
	})
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		publishedTotal,
		deliveredTotal,
		droppedStreams,
		activeSubscriptions,
	}
}
