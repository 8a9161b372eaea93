package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/benchfabric/benchfabric/internal/repository"
)

var _ repository.TopicRepository = (*topicRepo)(nil)

type topicRepo struct {
	pool *pgxpool.Pool
}

// NewTopicRepository builds a PostgreSQL-backed repository.TopicRepository.
func NewTopicRepository(pool *pgxpool.Pool) repository.TopicRepository {
	return &topicRepo{pool: pool}
}

// AssociateAll inserts any topic names the registry hasn't seen before,
// then links the worker to every one of them, both steps idempotent.
func (r *topicRepo) AssociateAll(ctx context.Context, workerName string, topics []string) error {
	if len(topics) == 0 {
		return nil
	}

	if _, err := r.pool.Exec(ctx, `
		INSERT INTO topics (name)
		SELECT * FROM unnest($1::text[])
		ON CONFLICT (name) DO NOTHING`, topics,
	); err != nil {
		return fmt.Errorf("postgres: insert topics: %w", err)
	}

	if _, err := r.pool.Exec(ctx, `
		INSERT INTO worker_topics (worker_name, topic_id)
		SELECT $1, id FROM topics WHERE name = ANY($2::text[])
		ON CONFLICT (worker_name, topic_id) DO NOTHING`,
		workerName, topics,
	); err != nil {
		return fmt.Errorf("postgres: associate worker topics: %w", err)
	}

	return nil
}

func (r *topicRepo) RemoveAll(ctx context.Context, workerName string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM worker_topics WHERE worker_name = $1`, workerName); err != nil {
		return fmt.Errorf("postgres: remove worker topics: %w", err)
	}
	return nil
}
