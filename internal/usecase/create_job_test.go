package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/domain"
	"github.com/benchfabric/benchfabric/internal/repository/mock"
)

func newTestUsecase(t *testing.T, contentLength int64) (*CreateJobUsecase, *mock.JobRepository, *mock.SubJobRepository, *mockPublisher) {
	t.Helper()
	jobs := mock.NewJobRepository()
	subJobs := mock.NewSubJobRepository()
	pub := &mockPublisher{}
	probe := &mockProbe{ContentLengthValue: contentLength}
	uc := NewCreateJobUsecase(jobs, subJobs, probe, pub,
		1*time.Second, 10*time.Second, 60*time.Second, 2, zap.NewNop())
	return uc, jobs, subJobs, pub
}

func TestCreateJob_HappyPath(t *testing.T) {
	uc, jobs, subJobs, pub := newTestUsecase(t, 10*1024*1024*1024) // 10 GiB

	resp, err := uc.Execute(context.Background(), CreateJobRequest{
		URL:        "http://host/10gb.bin",
		RoutingKey: "all",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.SubJobIDs) != 2 {
		t.Fatalf("expected 2 sub_jobs, got %d", len(resp.SubJobIDs))
	}

	job, ok := jobs.Get(resp.JobID)
	if !ok {
		t.Fatal("job not persisted")
	}
	if job.Status != domain.JobPending {
		t.Errorf("expected pending job status, got %s", job.Status)
	}
	if job.Details.EndRange-job.Details.StartRange+1 != minWindowBytes {
		t.Errorf("expected a 100 MiB window, got %d bytes", job.Details.EndRange-job.Details.StartRange+1)
	}

	sub0, ok := subJobs.Get(resp.SubJobIDs[0])
	if !ok {
		t.Fatal("first sub_job not persisted")
	}
	sub1, ok := subJobs.Get(resp.SubJobIDs[1])
	if !ok {
		t.Fatal("second sub_job not persisted")
	}
	gap := sub1.Details.StartTime.Sub(sub0.Details.StartTime)
	wantGap := 10*time.Second + 60*time.Second + 1*time.Second
	if gap != wantGap {
		t.Errorf("expected %s stagger between sub_jobs, got %s", wantGap, gap)
	}
	if !sub0.Details.DownloadStartTime.Equal(sub0.Details.StartTime.Add(10 * time.Second)) {
		t.Errorf("download_start_time should be start_time + download delay")
	}

	if pub.Count() != 2 {
		t.Errorf("expected 2 published job messages, got %d", pub.Count())
	}
}

func TestCreateJob_ExactBoundary(t *testing.T) {
	uc, jobs, _, _ := newTestUsecase(t, minWindowBytes)

	resp, err := uc.Execute(context.Background(), CreateJobRequest{URL: "http://host/f.bin", RoutingKey: "all"})
	if err != nil {
		t.Fatalf("expected success for exactly 100 MiB, got %v", err)
	}
	job, _ := jobs.Get(resp.JobID)
	if job.Details.StartRange != 0 {
		t.Errorf("expected start_range 0 for an exact-size file, got %d", job.Details.StartRange)
	}
}

func TestCreateJob_UndersizedFile(t *testing.T) {
	uc, _, _, _ := newTestUsecase(t, minWindowBytes-1)

	_, err := uc.Execute(context.Background(), CreateJobRequest{URL: "http://host/f.bin", RoutingKey: "all"})
	if !errors.Is(err, domain.ErrFileTooSmall) {
		t.Fatalf("expected ErrFileTooSmall, got %v", err)
	}
}

func TestCreateJob_InvalidURL(t *testing.T) {
	uc, _, _, _ := newTestUsecase(t, minWindowBytes)

	_, err := uc.Execute(context.Background(), CreateJobRequest{URL: "ftp://host/f.bin", RoutingKey: "all"})
	if !errors.Is(err, domain.ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
}

func TestCreateJob_EmptyRoutingKey(t *testing.T) {
	uc, _, _, _ := newTestUsecase(t, minWindowBytes)

	_, err := uc.Execute(context.Background(), CreateJobRequest{URL: "http://host/f.bin", RoutingKey: "  "})
	if !errors.Is(err, domain.ErrEmptyRoutingKey) {
		t.Fatalf("expected ErrEmptyRoutingKey, got %v", err)
	}
}

func TestCreateJob_PublishFailureSurfacesAsError(t *testing.T) {
	uc, _, _, pub := newTestUsecase(t, minWindowBytes)
	pub.PublishFn = func(ctx context.Context, routingKey string, body []byte) error {
		return errors.New("broker unavailable")
	}

	_, err := uc.Execute(context.Background(), CreateJobRequest{URL: "http://host/f.bin", RoutingKey: "all"})
	if !errors.Is(err, domain.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}
}
