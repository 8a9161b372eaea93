package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/benchfabric/benchfabric/internal/domain"
	"github.com/benchfabric/benchfabric/internal/repository"
)

var _ repository.WorkerRepository = (*workerRepo)(nil)

type workerRepo struct {
	pool *pgxpool.Pool
}

// NewWorkerRepository builds a PostgreSQL-backed repository.WorkerRepository.
func NewWorkerRepository(pool *pgxpool.Pool) repository.WorkerRepository {
	return &workerRepo{pool: pool}
}

// UpsertOnline inserts or updates a worker row to online, setting started_at
// to this timestamp. Guarded by the monotonicity predicate.
func (r *workerRepo) UpsertOnline(ctx context.Context, name string, ts time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO workers (worker_name, status, last_seen, current_job_id, started_at, shutdown_at)
		VALUES ($1, $2, $3, NULL, $3, NULL)
		ON CONFLICT (worker_name) DO UPDATE SET
			status = EXCLUDED.status,
			last_seen = EXCLUDED.last_seen,
			started_at = EXCLUDED.last_seen
		WHERE workers.last_seen < EXCLUDED.last_seen`,
		name, domain.WorkerOnline, ts,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert worker online: %w", err)
	}
	return nil
}

// UpsertOffline inserts or updates a worker row to offline, setting
// shutdown_at to this timestamp. Guarded by the monotonicity predicate.
func (r *workerRepo) UpsertOffline(ctx context.Context, name string, ts time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO workers (worker_name, status, last_seen, current_job_id, started_at, shutdown_at)
		VALUES ($1, $2, $3, NULL, NULL, $3)
		ON CONFLICT (worker_name) DO UPDATE SET
			status = EXCLUDED.status,
			last_seen = EXCLUDED.last_seen,
			shutdown_at = EXCLUDED.last_seen
		WHERE workers.last_seen < EXCLUDED.last_seen`,
		name, domain.WorkerOffline, ts,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert worker offline: %w", err)
	}
	return nil
}

// SetCurrentJob inserts or updates a worker row's current_job_id. A Job
// status message may be the first thing the registry ever sees for a
// worker (spec.md §8 Scenario 5's reordering), so this upserts exactly
// like UpsertOnline/UpsertOffline rather than assuming the row already
// exists — a plain UPDATE would silently no-op and later get clobbered
// by a delayed Lifecycle(Online) row.
func (r *workerRepo) SetCurrentJob(ctx context.Context, name string, jobID *uuid.UUID, ts time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO workers (worker_name, status, last_seen, current_job_id, started_at, shutdown_at)
		VALUES ($1, '', $3, $2, NULL, NULL)
		ON CONFLICT (worker_name) DO UPDATE SET
			current_job_id = EXCLUDED.current_job_id,
			last_seen = EXCLUDED.last_seen
		WHERE workers.last_seen < EXCLUDED.last_seen`,
		name, jobID, ts,
	)
	if err != nil {
		return fmt.Errorf("postgres: set worker current_job: %w", err)
	}
	return nil
}

// Touch inserts or updates a worker row's last_seen for a bare heartbeat,
// upserting for the same reordering reason as SetCurrentJob.
func (r *workerRepo) Touch(ctx context.Context, name string, ts time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO workers (worker_name, status, last_seen, current_job_id, started_at, shutdown_at)
		VALUES ($1, '', $2, NULL, NULL, NULL)
		ON CONFLICT (worker_name) DO UPDATE SET
			last_seen = EXCLUDED.last_seen
		WHERE workers.last_seen < EXCLUDED.last_seen`,
		name, ts,
	)
	if err != nil {
		return fmt.Errorf("postgres: touch worker heartbeat: %w", err)
	}
	return nil
}

func (r *workerRepo) Get(ctx context.Context, name string) (*domain.Worker, error) {
	var w domain.Worker
	err := r.pool.QueryRow(ctx, `
		SELECT worker_name, status, last_seen, current_job_id, started_at, shutdown_at
		FROM workers WHERE worker_name = $1`, name,
	).Scan(&w.Name, &w.Status, &w.LastSeen, &w.CurrentJob, &w.StartedAt, &w.ShutdownAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("postgres: worker %q: %w", name, domain.ErrWorkerNotFound)
		}
		return nil, fmt.Errorf("postgres: get worker: %w", err)
	}
	return &w, nil
}
