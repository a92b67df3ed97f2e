package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "promogarden"

var scrapeJobs = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "jobs_total",
		Help:      "Scrape jobs processed by terminal status",
	},
	[]string{"status"},
)

// recordJob records one finished scrape job.
func recordJob(status string) {
	scrapeJobs.WithLabelValues(status).Inc()
}
