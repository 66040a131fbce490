package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	subscribersConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_subscribers_connected",
			Help: "Currently connected dashboard subscribers",
		},
	)

	deltasDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_deltas_delivered_total",
			Help: "State deltas successfully delivered to subscribers",
		},
	)
)
