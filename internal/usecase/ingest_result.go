package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/broker"
	"github.com/benchfabric/benchfabric/internal/domain"
	"github.com/benchfabric/benchfabric/internal/metrics"
	"github.com/benchfabric/benchfabric/internal/repository"
)

// IngestResultUsecase is the scheduler's result-ingestion path (C4 §4.4
// step 2): insert a result row, advance the owning SubJob, and complete
// the Job once no SubJob is left pending.
type IngestResultUsecase struct {
	results repository.ResultRepository
	subJobs repository.SubJobRepository
	jobs    repository.JobRepository
	log     *zap.Logger
}

func NewIngestResultUsecase(
	results repository.ResultRepository,
	subJobs repository.SubJobRepository,
	jobs repository.JobRepository,
	log *zap.Logger,
) *IngestResultUsecase {
	return &IngestResultUsecase{results: results, subJobs: subJobs, jobs: jobs, log: log}
}

// Execute is idempotent on ResultMessage.RunID: a duplicate insert (the
// expected shape of a safe broker redelivery) is swallowed rather than
// propagated as an error, so the caller can still acknowledge the delivery.
func (uc *IngestResultUsecase) Execute(ctx context.Context, envelope broker.WorkerResultEnvelope) error {
	result := envelope.Result

	download, err := json.Marshal(result.DownloadResult)
	if err != nil {
		return fmt.Errorf("marshal download outcome: %w", err)
	}
	ping, err := json.Marshal(result.PingResult)
	if err != nil {
		return fmt.Errorf("marshal ping outcome: %w", err)
	}
	head, err := json.Marshal(result.HeadResult)
	if err != nil {
		return fmt.Errorf("marshal head outcome: %w", err)
	}

	record := &domain.ResultRecord{
		RunID:      result.RunID,
		JobID:      result.JobID,
		SubJobID:   result.SubJobID,
		WorkerName: result.WorkerName,
		IsSuccess:  result.IsSuccess,
		Download:   download,
		Ping:       ping,
		Head:       head,
	}

	if err := uc.results.Insert(ctx, record); err != nil {
		if errors.Is(err, domain.ErrDuplicateRun) {
			metrics.ResultsIngestedTotal.WithLabelValues("duplicate").Inc()
			uc.log.Info("duplicate result ignored, safe redelivery",
				zap.String("run_id", result.RunID.String()))
			return nil
		}
		return fmt.Errorf("insert result: %w", err)
	}

	subJobStatus := domain.JobFailed
	if result.IsSuccess {
		subJobStatus = domain.JobCompleted
	}

	pending, err := uc.subJobs.UpdateStatus(ctx, result.SubJobID, subJobStatus)
	if err != nil {
		if errors.Is(err, domain.ErrSubJobNotFound) {
			metrics.ResultsIngestedTotal.WithLabelValues("stale").Inc()
			uc.log.Warn("result for unknown sub_job treated as stale",
				zap.String("sub_job_id", result.SubJobID.String()))
			return nil
		}
		return fmt.Errorf("update sub_job status: %w", err)
	}

	if pending == 0 {
		job, err := uc.jobs.GetByID(ctx, result.JobID)
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		if job.Status != domain.JobCompleted {
			if err := uc.jobs.Complete(ctx, result.JobID); err != nil {
				return fmt.Errorf("complete job: %w", err)
			}
			metrics.JobsCompletedTotal.Inc()
		}
	}

	metrics.ResultsIngestedTotal.WithLabelValues("ok").Inc()
	return nil
}
