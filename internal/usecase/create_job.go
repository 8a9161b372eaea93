package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/broker"
	"github.com/benchfabric/benchfabric/internal/domain"
	"github.com/benchfabric/benchfabric/internal/repository"
	"github.com/benchfabric/benchfabric/internal/upstream"
)

// minWindowBytes is the fixed 100 MiB measurement window spec.md §4.4
// requires every target to support.
const minWindowBytes int64 = 100 * 1024 * 1024

// JobPublisher is the subset of broker.Publisher the job manager needs;
// accepting the interface keeps the usecase unit-testable without a
// running broker.
type JobPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// CreateJobUsecase is the Scheduler Job Manager's entry point (C4): it
// validates a job request, probes the target for size, fans the job out
// into staggered SubJobs, and dispatches a WorkerJob envelope for each.
type CreateJobUsecase struct {
	jobs    repository.JobRepository
	subJobs repository.SubJobRepository
	probe   upstream.Probe
	pub     JobPublisher

	syncDelay           time.Duration
	downloadDelay       time.Duration
	maxDownloadDuration time.Duration
	subJobCount         int

	log *zap.Logger
}

// NewCreateJobUsecase wires a CreateJobUsecase from the scheduler's timing
// configuration (spec.md §9: sub-job fan-out count is an implementation
// detail, parameterized here as SubJobCount).
func NewCreateJobUsecase(
	jobs repository.JobRepository,
	subJobs repository.SubJobRepository,
	probe upstream.Probe,
	pub JobPublisher,
	syncDelay, downloadDelay, maxDownloadDuration time.Duration,
	subJobCount int,
	log *zap.Logger,
) *CreateJobUsecase {
	return &CreateJobUsecase{
		jobs:                jobs,
		subJobs:             subJobs,
		probe:               probe,
		pub:                 pub,
		syncDelay:           syncDelay,
		downloadDelay:       downloadDelay,
		maxDownloadDuration: maxDownloadDuration,
		subJobCount:         subJobCount,
		log:                 log,
	}
}

// CreateJobRequest mirrors the POST /job body.
type CreateJobRequest struct {
	URL        string
	RoutingKey string
}

// CreateJobResponse mirrors the POST /job response.
type CreateJobResponse struct {
	JobID     uuid.UUID   `json:"job_id"`
	SubJobIDs []uuid.UUID `json:"sub_jobs"`
}

// Execute runs the full job-creation sequence from spec.md §4.4: validate,
// HEAD probe, choose a random window, persist the Job, then persist and
// publish SubJobCount staggered SubJobs.
func (uc *CreateJobUsecase) Execute(ctx context.Context, req CreateJobRequest) (*CreateJobResponse, error) {
	parsed, err := url.Parse(req.URL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, domain.ErrInvalidURL
	}
	if strings.TrimSpace(req.RoutingKey) == "" {
		return nil, domain.ErrEmptyRoutingKey
	}

	contentLength, err := uc.probe.ContentLength(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, err)
	}
	if contentLength < minWindowBytes {
		return nil, domain.ErrFileTooSmall
	}

	maxStart := contentLength - minWindowBytes
	var startRange int64
	if maxStart > 0 {
		startRange = rand.Int63n(maxStart + 1)
	}
	endRange := startRange + minWindowBytes - 1

	job := &domain.Job{
		ID:         uuid.New(),
		URL:        req.URL,
		RoutingKey: req.RoutingKey,
		Status:     domain.JobPending,
		Details:    domain.JobDetails{StartRange: startRange, EndRange: endRange},
	}
	if err := uc.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	subJobIDs := make([]uuid.UUID, 0, uc.subJobCount)
	start := time.Now().UTC().Add(uc.syncDelay)
	for i := 0; i < uc.subJobCount; i++ {
		downloadStart := start.Add(uc.downloadDelay)

		subJob := &domain.SubJob{
			ID:     uuid.New(),
			JobID:  job.ID,
			Status: domain.JobPending,
			Type:   domain.CombinedDHP,
			Details: domain.SubJobDetails{
				StartTime:         start,
				DownloadStartTime: downloadStart,
			},
		}
		if err := uc.subJobs.Create(ctx, subJob); err != nil {
			return nil, fmt.Errorf("create sub_job: %w", err)
		}

		envelope := broker.WorkerJobEnvelope{
			JobID: job.ID,
			Payload: broker.JobMessage{
				JobID:             job.ID,
				SubJobID:          subJob.ID,
				URL:               job.URL,
				StartTime:         start,
				DownloadStartTime: downloadStart,
				StartRange:        startRange,
				EndRange:          endRange,
			},
		}
		body, err := json.Marshal(envelope)
		if err != nil {
			return nil, fmt.Errorf("marshal job envelope: %w", err)
		}
		if err := uc.pub.Publish(ctx, job.RoutingKey, body); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPublishFailed, err)
		}

		subJobIDs = append(subJobIDs, subJob.ID)
		// Next sub-job starts one sync delay after this one's download window
		// closes (one full measurement window after this one's start), so the
		// same worker is observed under back-to-back conditions (spec.md §3,
		// §4.4 T0/T1).
		start = downloadStart.Add(uc.maxDownloadDuration).Add(uc.syncDelay)
	}

	uc.log.Info("job created",
		zap.String("job_id", job.ID.String()),
		zap.String("routing_key", job.RoutingKey),
		zap.Int("sub_job_count", len(subJobIDs)),
	)

	return &CreateJobResponse{JobID: job.ID, SubJobIDs: subJobIDs}, nil
}
