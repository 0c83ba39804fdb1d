package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PassesRun = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verification_passes_total",
			Help: "number of batch passes executed",
		},
	)
	EventsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verification_events_completed_total",
			Help: "number of events verified and reported",
		},
	)
	EventsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verification_events_failed_total",
			Help: "number of events that failed a processing attempt",
		},
	)
)

func Init() {
	prometheus.MustRegister(PassesRun, EventsCompleted, EventsFailed)
}
