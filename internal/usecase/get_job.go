package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/domain"
	"github.com/benchfabric/benchfabric/internal/repository"
)

// GetJobUsecase serves GET /data: a Job plus every result row recorded
// against it.
type GetJobUsecase struct {
	jobs repository.JobRepository
	log  *zap.Logger
}

func NewGetJobUsecase(jobs repository.JobRepository, log *zap.Logger) *GetJobUsecase {
	return &GetJobUsecase{jobs: jobs, log: log}
}

func (uc *GetJobUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.JobWithData, error) {
	job, err := uc.jobs.GetWithData(ctx, id)
	if err != nil {
		uc.log.Debug("job lookup failed", zap.String("job_id", id.String()), zap.Error(err))
		return nil, err
	}
	return job, nil
}
