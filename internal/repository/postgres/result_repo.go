package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/benchfabric/benchfabric/internal/domain"
	"github.com/benchfabric/benchfabric/internal/repository"
)

const pgUniqueViolation = "23505"

var _ repository.ResultRepository = (*resultRepo)(nil)

type resultRepo struct {
	pool *pgxpool.Pool
}

// NewResultRepository builds a PostgreSQL-backed repository.ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) repository.ResultRepository {
	return &resultRepo{pool: pool}
}

func (r *resultRepo) Insert(ctx context.Context, result *domain.ResultRecord) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO worker_data (id, job_id, sub_job_id, worker_name, is_success, download, ping, head, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		result.RunID, result.JobID, result.SubJobID, result.WorkerName,
		result.IsSuccess, result.Download, result.Ping, result.Head, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDuplicateRun
		}
		return fmt.Errorf("postgres: insert result: %w", err)
	}
	result.CreatedAt = now
	return nil
}
