package broker

import (
	"time"

	"github.com/google/uuid"

	"github.com/benchfabric/benchfabric/internal/domain"
)

// JobMessage is the payload a scheduler publishes on job_exchange and a
// worker's measurement engine consumes.
type JobMessage struct {
	JobID             uuid.UUID `json:"job_id"`
	SubJobID          uuid.UUID `json:"sub_job_id"`
	URL               string    `json:"url"`
	StartTime         time.Time `json:"start_time"`
	DownloadStartTime time.Time `json:"download_start_time"`
	StartRange        int64     `json:"start_range"`
	EndRange          int64     `json:"end_range"`
}

// MinMaxAvg is the shared payload shape for the ping and head probes.
type MinMaxAvg struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// SecondSample is one entry in a DownloadResult's per-second log:
// (timestamp, bytes received this interval, cumulative bytes).
type SecondSample struct {
	Timestamp        time.Time `json:"ts"`
	IntervalBytes    int64     `json:"interval_bytes"`
	AccumulatedBytes int64     `json:"accumulating_bytes"`
}

// DownloadResult is the download probe's success payload.
type DownloadResult struct {
	TotalBytes         int64          `json:"total_bytes"`
	ElapsedSecs        float64        `json:"elapsed_secs"`
	DownloadSpeedMbps  float64        `json:"download_speed"`
	JobStartTime       time.Time      `json:"job_start_time"`
	DownloadStartTime  time.Time      `json:"download_start_time"`
	EndTime            time.Time      `json:"end_time"`
	TimeToFirstByteMs  float64        `json:"time_to_first_byte_ms"`
	SecondBySecondLogs []SecondSample `json:"second_by_second_logs"`
}

// ResultMessage is the payload a worker publishes on result_exchange after
// running the measurement engine for one SubJob.
type ResultMessage struct {
	RunID          uuid.UUID                      `json:"run_id"`
	JobID          uuid.UUID                      `json:"job_id"`
	SubJobID       uuid.UUID                      `json:"sub_job_id"`
	WorkerName     string                          `json:"worker_name"`
	IsSuccess      bool                            `json:"is_success"`
	DownloadResult domain.Outcome[DownloadResult]  `json:"download_result"`
	PingResult     domain.Outcome[MinMaxAvg]       `json:"ping_result"`
	HeadResult     domain.Outcome[MinMaxAvg]       `json:"head_result"`
}

// JobStatus is the optional payload of a Job(Some|None) status variant:
// present while a worker is actively executing a run, absent otherwise.
type JobStatus struct {
	RunID      uuid.UUID `json:"run_id"`
	JobID      uuid.UUID `json:"job_id"`
	SubJobID   uuid.UUID `json:"sub_job_id"`
	WorkerName string    `json:"worker_name"`
}

// LifecycleStatus is the payload of a Lifecycle status variant.
type LifecycleStatus struct {
	WorkerTopics  []string `json:"worker_topics"`
	WorkerStatus  string   `json:"worker_status"` // "online" | "offline"
}

// StatusKind discriminates the three StatusMessage subtypes.
type StatusKind string

const (
	StatusKindLifecycle StatusKind = "lifecycle"
	StatusKindJob       StatusKind = "job"
	StatusKindHeartbeat StatusKind = "heartbeat"
)

// StatusMessage is the payload a worker publishes on status_exchange; the
// scheduler's worker registry folds it into the workers/topics tables.
//
// At most one of Lifecycle/Job is populated depending on Kind; Job is nil
// for the Job(None) variant and for Heartbeat/Lifecycle messages.
type StatusMessage struct {
	WorkerName string     `json:"worker_name"`
	Timestamp  time.Time  `json:"timestamp"`
	Kind       StatusKind `json:"kind"`
	Lifecycle  *LifecycleStatus `json:"lifecycle,omitempty"`
	Job        *JobStatus       `json:"job,omitempty"`
}

// NewLifecycleStatus builds a Lifecycle(Online|Offline) status message.
func NewLifecycleStatus(workerName string, ts time.Time, topics []string, online bool) StatusMessage {
	status := "offline"
	if online {
		status = "online"
	}
	return StatusMessage{
		WorkerName: workerName,
		Timestamp:  ts,
		Kind:       StatusKindLifecycle,
		Lifecycle:  &LifecycleStatus{WorkerTopics: topics, WorkerStatus: status},
	}
}

// NewJobStatus builds a Job(Some{...}) status message.
func NewJobStatus(workerName string, ts time.Time, job JobStatus) StatusMessage {
	return StatusMessage{
		WorkerName: workerName,
		Timestamp:  ts,
		Kind:       StatusKindJob,
		Job:        &job,
	}
}

// NewJobClearedStatus builds a Job(None) status message.
func NewJobClearedStatus(workerName string, ts time.Time) StatusMessage {
	return StatusMessage{
		WorkerName: workerName,
		Timestamp:  ts,
		Kind:       StatusKindJob,
		Job:        nil,
	}
}

// NewHeartbeatStatus builds a Heartbeat status message.
func NewHeartbeatStatus(workerName string, ts time.Time) StatusMessage {
	return StatusMessage{
		WorkerName: workerName,
		Timestamp:  ts,
		Kind:       StatusKindHeartbeat,
	}
}

// WorkerJobEnvelope is the outer Message variant carrying a JobMessage.
type WorkerJobEnvelope struct {
	JobID   uuid.UUID  `json:"job_id"`
	Payload JobMessage `json:"payload"`
}

// WorkerResultEnvelope is the outer Message variant carrying a ResultMessage.
type WorkerResultEnvelope struct {
	JobID  uuid.UUID     `json:"job_id"`
	Result ResultMessage `json:"result"`
}

// WorkerStatusEnvelope is the outer Message variant carrying a StatusMessage.
type WorkerStatusEnvelope struct {
	Status StatusMessage `json:"status"`
}
