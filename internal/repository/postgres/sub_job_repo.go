package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/benchfabric/benchfabric/internal/domain"
	"github.com/benchfabric/benchfabric/internal/repository"
)

var _ repository.SubJobRepository = (*subJobRepo)(nil)

type subJobRepo struct {
	pool *pgxpool.Pool
}

// NewSubJobRepository builds a PostgreSQL-backed repository.SubJobRepository.
func NewSubJobRepository(pool *pgxpool.Pool) repository.SubJobRepository {
	return &subJobRepo{pool: pool}
}

func (r *subJobRepo) Create(ctx context.Context, subJob *domain.SubJob) error {
	details, err := json.Marshal(subJob.Details)
	if err != nil {
		return fmt.Errorf("postgres: marshal sub_job details: %w", err)
	}
	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx, `
		INSERT INTO sub_jobs (id, job_id, status, type, details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		subJob.ID, subJob.JobID, subJob.Status, subJob.Type, details, now, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: create sub_job: %w", err)
	}
	subJob.CreatedAt = now
	subJob.UpdatedAt = now
	return nil
}

func (r *subJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SubJob, error) {
	var s domain.SubJob
	var details []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, job_id, status, type, details, created_at, updated_at
		FROM sub_jobs WHERE id = $1`, id,
	).Scan(&s.ID, &s.JobID, &s.Status, &s.Type, &details, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrSubJobNotFound
		}
		return nil, fmt.Errorf("postgres: get sub_job: %w", err)
	}
	if err := json.Unmarshal(details, &s.Details); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal sub_job details: %w", err)
	}
	return &s, nil
}

// UpdateStatus only transitions a SubJob out of pending the first time it is
// called — a result whose SubJob is already terminal still gets its row
// inserted upstream but must not re-trigger a Job transition, so this only
// counts remaining pending siblings and leaves re-application a no-op.
func (r *subJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin update sub_job status: %w", err)
	}
	defer tx.Rollback(ctx)

	var jobID uuid.UUID
	if err := tx.QueryRow(ctx, `
		UPDATE sub_jobs SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING job_id`,
		status, time.Now().UTC(), id, domain.JobPending,
	).Scan(&jobID); err != nil {
		if err == pgx.ErrNoRows {
			// Already terminal, or unknown id: fetch job_id separately so the
			// caller can still decide the delivery is stale vs a repeat.
			if qErr := tx.QueryRow(ctx, `SELECT job_id FROM sub_jobs WHERE id = $1`, id).Scan(&jobID); qErr != nil {
				if qErr == pgx.ErrNoRows {
					return 0, domain.ErrSubJobNotFound
				}
				return 0, fmt.Errorf("postgres: lookup sub_job job_id: %w", qErr)
			}
		} else {
			return 0, fmt.Errorf("postgres: update sub_job status: %w", err)
		}
	}

	var pending int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM sub_jobs WHERE job_id = $1 AND status = $2`,
		jobID, domain.JobPending,
	).Scan(&pending); err != nil {
		return 0, fmt.Errorf("postgres: count pending sub_jobs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit update sub_job status: %w", err)
	}
	return pending, nil
}
