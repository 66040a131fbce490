package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "events_processed_total",
		Help: "Change records processed, by entity kind and outcome",
	},
	[]string{"kind", "status"},
)
