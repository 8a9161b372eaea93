package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/broker"
	"github.com/benchfabric/benchfabric/internal/domain"
	"github.com/benchfabric/benchfabric/internal/repository/mock"
)

func newResultFixture(t *testing.T) (*IngestResultUsecase, *mock.JobRepository, *mock.SubJobRepository, *mock.ResultRepository, uuid.UUID, uuid.UUID) {
	t.Helper()
	jobs := mock.NewJobRepository()
	subJobs := mock.NewSubJobRepository()
	results := mock.NewResultRepository()
	uc := NewIngestResultUsecase(results, subJobs, jobs, zap.NewNop())

	jobID := uuid.New()
	if err := jobs.Create(context.Background(), &domain.Job{ID: jobID, Status: domain.JobPending}); err != nil {
		t.Fatal(err)
	}
	subJobID := uuid.New()
	if err := subJobs.Create(context.Background(), &domain.SubJob{ID: subJobID, JobID: jobID, Status: domain.JobPending}); err != nil {
		t.Fatal(err)
	}
	return uc, jobs, subJobs, results, jobID, subJobID
}

func successEnvelope(jobID, subJobID uuid.UUID) broker.WorkerResultEnvelope {
	return broker.WorkerResultEnvelope{
		JobID: jobID,
		Result: broker.ResultMessage{
			RunID:          uuid.New(),
			JobID:          jobID,
			SubJobID:       subJobID,
			WorkerName:     "worker-1",
			IsSuccess:      true,
			DownloadResult: domain.OkOutcome(broker.DownloadResult{TotalBytes: 1024}),
			PingResult:     domain.OkOutcome(broker.MinMaxAvg{Min: 1, Max: 2, Avg: 1.5}),
			HeadResult:     domain.OkOutcome(broker.MinMaxAvg{Min: 1, Max: 2, Avg: 1.5}),
		},
	}
}

func TestIngestResult_SingleSubJobCompletesJob(t *testing.T) {
	uc, jobs, subJobs, results, jobID, subJobID := newResultFixture(t)

	if err := uc.Execute(context.Background(), successEnvelope(jobID, subJobID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if results.Count() != 1 {
		t.Fatalf("expected 1 result row, got %d", results.Count())
	}
	sub, _ := subJobs.Get(subJobID)
	if sub.Status != domain.JobCompleted {
		t.Errorf("expected sub_job completed, got %s", sub.Status)
	}
	job, _ := jobs.Get(jobID)
	if job.Status != domain.JobCompleted {
		t.Errorf("expected job completed, got %s", job.Status)
	}
}

func TestIngestResult_JobWaitsForAllSubJobs(t *testing.T) {
	uc, jobs, subJobs, _, jobID, subJobID1 := newResultFixture(t)
	subJobID2 := uuid.New()
	if err := subJobs.Create(context.Background(), &domain.SubJob{ID: subJobID2, JobID: jobID, Status: domain.JobPending}); err != nil {
		t.Fatal(err)
	}

	if err := uc.Execute(context.Background(), successEnvelope(jobID, subJobID1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, _ := jobs.Get(jobID)
	if job.Status != domain.JobPending {
		t.Errorf("job should still be pending with one sub_job outstanding, got %s", job.Status)
	}

	if err := uc.Execute(context.Background(), successEnvelope(jobID, subJobID2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, _ = jobs.Get(jobID)
	if job.Status != domain.JobCompleted {
		t.Errorf("expected job completed once both sub_jobs resolved, got %s", job.Status)
	}
}

func TestIngestResult_JobCompletesDespiteSubJobFailure(t *testing.T) {
	uc, jobs, subJobs, _, jobID, subJobID := newResultFixture(t)

	envelope := successEnvelope(jobID, subJobID)
	envelope.Result.IsSuccess = false
	envelope.Result.DownloadResult = domain.ErrOutcome[broker.DownloadResult]("no bytes downloaded")

	if err := uc.Execute(context.Background(), envelope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sub, _ := subJobs.Get(subJobID)
	if sub.Status != domain.JobFailed {
		t.Errorf("expected sub_job failed, got %s", sub.Status)
	}
	// spec.md §3 invariant: Job completion is "no pending sub-jobs",
	// regardless of per-sub-job success.
	job, _ := jobs.Get(jobID)
	if job.Status != domain.JobCompleted {
		t.Errorf("expected job completed even with a failed sub_job, got %s", job.Status)
	}
}

func TestIngestResult_DuplicateRunIsIdempotent(t *testing.T) {
	uc, _, _, results, jobID, subJobID := newResultFixture(t)
	envelope := successEnvelope(jobID, subJobID)

	if err := uc.Execute(context.Background(), envelope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Redeliver the identical message.
	if err := uc.Execute(context.Background(), envelope); err != nil {
		t.Fatalf("redelivery should not error, got %v", err)
	}
	if results.Count() != 1 {
		t.Errorf("expected exactly 1 row after redelivery, got %d", results.Count())
	}
}

func TestIngestResult_UnknownSubJobIsStaleNotError(t *testing.T) {
	uc, _, _, _, jobID, _ := newResultFixture(t)
	envelope := successEnvelope(jobID, uuid.New())

	if err := uc.Execute(context.Background(), envelope); err != nil {
		t.Fatalf("expected stale result to be swallowed, got %v", err)
	}
}
