package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "promogarden"

var (
	pipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by outcome",
		},
		[]string{"status"},
	)

	pipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full pipeline run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	dealsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "deals_total",
			Help:      "Candidate deals by marketplace and outcome",
		},
		[]string{"marketplace", "outcome"},
	)
)

// recordRun records one completed pipeline run.
func recordRun(status string, duration time.Duration) {
	pipelineRuns.WithLabelValues(status).Inc()
	pipelineRunDuration.Observe(duration.Seconds())
}

// recordDeal records the outcome of one candidate.
func recordDeal(marketplace, outcome string) {
	dealsProcessed.WithLabelValues(marketplace, outcome).Inc()
}
