package message

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	postedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lodgechat",
		Subsystem: "message",
		Name:      "posted_total",
		Help:      "Messages appended to thread logs.",
	})
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{postedTotal}
}
