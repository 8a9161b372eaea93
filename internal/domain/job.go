package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a user-submitted measurement request.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// JobDetails is the free-form part of a Job's persisted details column:
// the byte range chosen once at creation.
type JobDetails struct {
	StartRange int64 `json:"start_range"`
	EndRange   int64 `json:"end_range"`
}

// Job is the user-visible measurement request. Created by the API, mutated
// only by the scheduler once every one of its SubJobs has left pending,
// never deleted by the core.
type Job struct {
	ID         uuid.UUID  `json:"id"`
	URL        string     `json:"url"`
	RoutingKey string     `json:"routing_key"`
	Status     JobStatus  `json:"status"`
	Details    JobDetails `json:"details"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SubJobType is currently a singleton: Download+Head+Ping run concurrently.
type SubJobType string

const CombinedDHP SubJobType = "combined_dhp"

// SubJobDetails carries the scheduled wall-clock instants a worker must
// honor for this execution attempt, plus an optional worker-name allowlist.
type SubJobDetails struct {
	StartTime         time.Time `json:"start_time"`
	DownloadStartTime time.Time `json:"download_start_time"`
	WorkerNames       []string  `json:"worker_names,omitempty"`
}

// SubJob is one scheduled execution attempt of a Job.
type SubJob struct {
	ID        uuid.UUID     `json:"id"`
	JobID     uuid.UUID     `json:"job_id"`
	Status    JobStatus     `json:"status"`
	Type      SubJobType    `json:"type"`
	Details   SubJobDetails `json:"details"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// JobWithData is the shape GET /data returns: a Job plus every Result row
// recorded against it, one per (sub_job, worker) execution.
type JobWithData struct {
	Job
	Data []ResultSummary `json:"data"`
}

// ResultSummary is the trimmed view of a ResultRecord used in JobWithData.
type ResultSummary struct {
	ID         uuid.UUID `json:"id"`
	WorkerName string    `json:"worker_name"`
	Download   any       `json:"download"`
	Ping       any       `json:"ping"`
	Head       any       `json:"head"`
}
