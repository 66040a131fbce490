package listener

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notificationsReceived = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "listener_notifications_total",
		Help: "Database notifications received, by disposition",
	},
	[]string{"disposition"},
)
