package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/benchfabric/benchfabric/internal/domain"
)

// JobRepository persists Job rows and their aggregated result view.
// Implementations must be safe for concurrent use.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	GetWithData(ctx context.Context, id uuid.UUID) (*domain.JobWithData, error)
	// Complete transitions a Job to completed; a no-op if it is already terminal.
	Complete(ctx context.Context, id uuid.UUID) error
}

// SubJobRepository persists SubJob rows.
type SubJobRepository interface {
	Create(ctx context.Context, subJob *domain.SubJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SubJob, error)
	// UpdateStatus sets a SubJob's terminal status and returns the number of
	// SubJobs for its parent Job still in domain.JobPending afterward.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) (pendingRemaining int, err error)
}

// ResultRepository inserts one row per worker execution. Insert is
// idempotent on RunID: a duplicate insert is reported via ErrDuplicateRun
// so the caller can ack without double-counting.
type ResultRepository interface {
	Insert(ctx context.Context, result *domain.ResultRecord) error
}

// WorkerRepository maintains the liveness registry (C5), with every write
// guarded by the monotonicity predicate stored.last_seen < incoming.timestamp.
type WorkerRepository interface {
	UpsertOnline(ctx context.Context, name string, ts time.Time) error
	UpsertOffline(ctx context.Context, name string, ts time.Time) error
	SetCurrentJob(ctx context.Context, name string, jobID *uuid.UUID, ts time.Time) error
	Touch(ctx context.Context, name string, ts time.Time) error
	Get(ctx context.Context, name string) (*domain.Worker, error)
}

// TopicRepository maintains the worker<->topic many-to-many association.
type TopicRepository interface {
	AssociateAll(ctx context.Context, workerName string, topics []string) error
	RemoveAll(ctx context.Context, workerName string) error
}
