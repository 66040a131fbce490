package poller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pollerScans = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "poller_scans_total",
		Help: "Reconciliation scan cycles, by outcome",
	},
	[]string{"outcome"},
)
