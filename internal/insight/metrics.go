package insight

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enrichmentResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_results_total",
			Help: "Enrichment outcomes by source",
		},
		[]string{"outcome"},
	)

	enrichmentAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_model_attempts_total",
			Help: "Individual model call attempts by result",
		},
		[]string{"result"},
	)
)
