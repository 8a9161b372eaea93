package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessedTotal counts completed measurement runs by outcome.
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchfabric_worker_jobs_processed_total",
			Help: "Total number of measurement jobs processed by this worker",
		},
		[]string{"is_success"},
	)

	// ProbeOutcomesTotal counts each probe's Ok/Err outcome individually.
	ProbeOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchfabric_worker_probe_outcomes_total",
			Help: "Total number of probe outcomes by probe kind and result",
		},
		[]string{"probe", "outcome"},
	)

	// JobDuration tracks wall-clock time from job receipt (including the wait
	// for start_time) to the end of the measurement engine run.
	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "benchfabric_worker_job_duration_seconds",
			Help:    "Duration of a measurement job from receipt to the end of the measurement run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// DownloadThroughputMbps observes the download probe's measured speed.
	DownloadThroughputMbps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "benchfabric_worker_download_speed_mbps",
			Help:    "Observed download throughput in Mbps",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
	)

	// JobsActive tracks whether the worker is currently executing a job (0 or 1).
	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "benchfabric_worker_job_active",
			Help: "1 while this worker is executing a job, 0 otherwise",
		},
	)

	// HeartbeatsSentTotal counts heartbeat status messages emitted.
	HeartbeatsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "benchfabric_worker_heartbeats_sent_total",
			Help: "Total number of heartbeat status messages emitted",
		},
	)
)
