package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResultRecord is one row per worker execution of a SubJob. Immutable after
// insert; the primary key is the worker-chosen run id, which is what makes
// redelivery of the same WorkerResult idempotent.
type ResultRecord struct {
	RunID      uuid.UUID `json:"run_id"`
	JobID      uuid.UUID `json:"job_id"`
	SubJobID   uuid.UUID `json:"sub_job_id"`
	WorkerName string    `json:"worker_name"`
	IsSuccess  bool      `json:"is_success"`
	Download   []byte    `json:"download"` // raw JSON of the Outcome[DownloadResult]
	Ping       []byte    `json:"ping"`      // raw JSON of the Outcome[MinMaxAvg]
	Head       []byte    `json:"head"`      // raw JSON of the Outcome[MinMaxAvg]
	CreatedAt  time.Time `json:"created_at"`
}
