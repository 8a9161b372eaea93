package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/broker"
	"github.com/benchfabric/benchfabric/internal/domain"
	"github.com/benchfabric/benchfabric/internal/repository/mock"
)

// TestFanOut_CreateThenIngestBothSubJobsCompletesJob drives CreateJobUsecase
// and IngestResultUsecase back to back against the same mock repositories,
// exercising the full create -> publish -> ingest -> job-completed path
// spec.md §4.4/§8 describes, rather than each usecase in isolation.
func TestFanOut_CreateThenIngestBothSubJobsCompletesJob(t *testing.T) {
	jobs := mock.NewJobRepository()
	subJobs := mock.NewSubJobRepository()
	results := mock.NewResultRepository()
	pub := &mockPublisher{}
	probe := &mockProbe{ContentLengthValue: 10 * 1024 * 1024 * 1024}

	createUC := NewCreateJobUsecase(jobs, subJobs, probe, pub,
		1*time.Second, 10*time.Second, 60*time.Second, 2, zap.NewNop())
	ingestUC := NewIngestResultUsecase(results, subJobs, jobs, zap.NewNop())

	resp, err := createUC.Execute(context.Background(), CreateJobRequest{
		URL:        "http://host/10gb.bin",
		RoutingKey: "all",
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if len(resp.SubJobIDs) != 2 {
		t.Fatalf("expected 2 sub_jobs, got %d", len(resp.SubJobIDs))
	}
	if pub.Count() != 2 {
		t.Fatalf("expected 2 published job messages, got %d", pub.Count())
	}

	// Decode each published WorkerJobEnvelope the way a worker would, to
	// confirm the job manager published exactly what the sub_job rows say.
	for i, msg := range pub.published {
		var envelope broker.WorkerJobEnvelope
		if err := json.Unmarshal(msg.Body, &envelope); err != nil {
			t.Fatalf("unmarshal published envelope %d: %v", i, err)
		}
		if envelope.Payload.SubJobID != resp.SubJobIDs[i] {
			t.Errorf("envelope %d sub_job_id mismatch: got %s, want %s", i, envelope.Payload.SubJobID, resp.SubJobIDs[i])
		}
	}

	job, ok := jobs.Get(resp.JobID)
	if !ok {
		t.Fatal("job not persisted")
	}
	if job.Status != domain.JobPending {
		t.Fatalf("expected job pending after create, got %s", job.Status)
	}

	// First sub_job result arrives: job must still be pending.
	first := broker.WorkerResultEnvelope{
		JobID: resp.JobID,
		Result: broker.ResultMessage{
			RunID:          uuid.New(),
			JobID:          resp.JobID,
			SubJobID:       resp.SubJobIDs[0],
			WorkerName:     "worker-a",
			IsSuccess:      true,
			DownloadResult: domain.OkOutcome(broker.DownloadResult{TotalBytes: 1024 * 1024}),
			PingResult:     domain.OkOutcome(broker.MinMaxAvg{Min: 1, Max: 2, Avg: 1.5}),
			HeadResult:     domain.OkOutcome(broker.MinMaxAvg{Min: 1, Max: 2, Avg: 1.5}),
		},
	}
	if err := ingestUC.Execute(context.Background(), first); err != nil {
		t.Fatalf("ingest first result: %v", err)
	}
	job, _ = jobs.Get(resp.JobID)
	if job.Status != domain.JobPending {
		t.Fatalf("expected job still pending after one of two sub_jobs resolved, got %s", job.Status)
	}

	// Second (and final) sub_job result, reported as a failed probe: job
	// still transitions to completed since completion tracks pending count,
	// not per-probe success.
	second := broker.WorkerResultEnvelope{
		JobID: resp.JobID,
		Result: broker.ResultMessage{
			RunID:          uuid.New(),
			JobID:          resp.JobID,
			SubJobID:       resp.SubJobIDs[1],
			WorkerName:     "worker-b",
			IsSuccess:      false,
			DownloadResult: domain.ErrOutcome[broker.DownloadResult]("no bytes downloaded"),
			PingResult:     domain.ErrOutcome[broker.MinMaxAvg]("too many packets lost"),
			HeadResult:     domain.OkOutcome(broker.MinMaxAvg{Min: 1, Max: 2, Avg: 1.5}),
		},
	}
	if err := ingestUC.Execute(context.Background(), second); err != nil {
		t.Fatalf("ingest second result: %v", err)
	}

	job, _ = jobs.Get(resp.JobID)
	if job.Status != domain.JobCompleted {
		t.Fatalf("expected job completed once both sub_jobs resolved, got %s", job.Status)
	}
	if results.Count() != 2 {
		t.Fatalf("expected 2 result rows, got %d", results.Count())
	}

	sub0, _ := subJobs.Get(resp.SubJobIDs[0])
	sub1, _ := subJobs.Get(resp.SubJobIDs[1])
	if sub0.Status != domain.JobCompleted {
		t.Errorf("expected sub_job 0 completed, got %s", sub0.Status)
	}
	if sub1.Status != domain.JobFailed {
		t.Errorf("expected sub_job 1 failed, got %s", sub1.Status)
	}
}
