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

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepository builds a PostgreSQL-backed repository.JobRepository.
func NewJobRepository(pool *pgxpool.Pool) repository.JobRepository {
	return &jobRepo{pool: pool}
}

func (r *jobRepo) Create(ctx context.Context, job *domain.Job) error {
	details, err := json.Marshal(job.Details)
	if err != nil {
		return fmt.Errorf("postgres: marshal job details: %w", err)
	}
	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx, `
		INSERT INTO jobs (id, url, routing_key, status, details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.URL, job.RoutingKey, job.Status, details, now, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	var job domain.Job
	var details []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, url, routing_key, status, details, created_at, updated_at
		FROM jobs WHERE id = $1`, id,
	).Scan(&job.ID, &job.URL, &job.RoutingKey, &job.Status, &details, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("postgres: get job: %w", err)
	}
	if err := json.Unmarshal(details, &job.Details); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal job details: %w", err)
	}
	return &job, nil
}

func (r *jobRepo) GetWithData(ctx context.Context, id uuid.UUID) (*domain.JobWithData, error) {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, worker_name, download, ping, head
		FROM worker_data WHERE job_id = $1
		ORDER BY created_at ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get job data: %w", err)
	}
	defer rows.Close()

	data := make([]domain.ResultSummary, 0)
	for rows.Next() {
		var s domain.ResultSummary
		var download, ping, head []byte
		if err := rows.Scan(&s.ID, &s.WorkerName, &download, &ping, &head); err != nil {
			return nil, fmt.Errorf("postgres: scan job data row: %w", err)
		}
		_ = json.Unmarshal(download, &s.Download)
		_ = json.Unmarshal(ping, &s.Ping)
		_ = json.Unmarshal(head, &s.Head)
		data = append(data, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate job data: %w", err)
	}

	return &domain.JobWithData{Job: *job, Data: data}, nil
}

func (r *jobRepo) Complete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs SET status = $1, updated_at = $2
		WHERE id = $3 AND status != $1`,
		domain.JobCompleted, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: complete job: %w", err)
	}
	_ = tag // 0 rows affected just means the job was already completed
	return nil
}
