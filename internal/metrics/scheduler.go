package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsCreatedTotal counts POST /job outcomes.
	JobsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchfabric_scheduler_jobs_created_total",
			Help: "Total number of job creation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// JobsCompletedTotal counts Jobs that transitioned to completed.
	JobsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "benchfabric_scheduler_jobs_completed_total",
			Help: "Total number of jobs that reached the completed state",
		},
	)

	// ResultsIngestedTotal counts ingested result messages, labeled "ok" for
	// a fresh row, "duplicate" for a repeated run_id, or "stale" for a result
	// whose sub_job is unknown.
	ResultsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchfabric_scheduler_results_ingested_total",
			Help: "Total number of result messages ingested by outcome",
		},
		[]string{"outcome"},
	)

	// WorkersOnline tracks the current count of workers marked online.
	WorkersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "benchfabric_scheduler_workers_online",
			Help: "Number of workers currently marked online in the registry",
		},
	)

	// HTTPRequestDuration tracks request latency by route and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "benchfabric_scheduler_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)
)
