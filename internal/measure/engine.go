package measure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/broker"
	"github.com/benchfabric/benchfabric/internal/domain"
)

// Engine runs the three-way fan-out measurement for one JobMessage.
type Engine struct {
	SeqMax              int
	MaxDownloadDuration time.Duration
	LoopDeadlineGuard   time.Duration
	Log                 *zap.Logger
}

const startTimePastReason = "Start time is in the past"

// Run executes the time-sync protocol and returns the assembled
// ResultMessage. It never returns an error: every failure mode is encoded
// inside the result's per-probe Outcome, per the aborted-result rule for a
// start_time already in the past.
func (e *Engine) Run(ctx context.Context, job broker.JobMessage, workerName string) broker.ResultMessage {
	runID := uuid.New()

	if !job.StartTime.After(time.Now()) {
		return e.abortedResult(runID, job, workerName, startTimePastReason)
	}

	if err := sleepUntil(ctx, job.StartTime); err != nil {
		return e.abortedResult(runID, job, workerName, "Cancelled before start_time")
	}

	loopDeadline := job.DownloadStartTime.Add(-e.LoopDeadlineGuard)
	host := hostOf(job.URL)

	var (
		wg                                          sync.WaitGroup
		downloadResult                               broker.DownloadResult
		downloadErr, pingErr, headErr                error
		pingResult, headResult                       broker.MinMaxAvg
	)

	client := &http.Client{}

	wg.Add(3)
	go e.guard(&wg, &downloadErr, func() {
		downloadResult, downloadErr = runDownload(ctx, client, job.URL, job.StartRange, job.EndRange, job.StartTime, job.DownloadStartTime, e.MaxDownloadDuration)
	})
	go e.guard(&wg, &pingErr, func() {
		pingResult, pingErr = runPing(ctx, host, e.SeqMax, loopDeadline, func(sendErr error) {
			e.Log.Debug("ping send/receive failure, continuing sequence", zap.Error(sendErr))
		})
	})
	go e.guard(&wg, &headErr, func() {
		headResult, headErr = runHead(ctx, client, job.URL, e.SeqMax, loopDeadline)
	})
	wg.Wait()

	result := broker.ResultMessage{
		RunID:      runID,
		JobID:      job.JobID,
		SubJobID:   job.SubJobID,
		WorkerName: workerName,
	}

	if downloadErr != nil {
		result.DownloadResult = domain.ErrOutcome[broker.DownloadResult](downloadErr.Error())
	} else {
		result.DownloadResult = domain.OkOutcome(downloadResult)
	}
	if pingErr != nil {
		result.PingResult = domain.ErrOutcome[broker.MinMaxAvg](pingErr.Error())
	} else {
		result.PingResult = domain.OkOutcome(pingResult)
	}
	if headErr != nil {
		result.HeadResult = domain.ErrOutcome[broker.MinMaxAvg](headErr.Error())
	} else {
		result.HeadResult = domain.OkOutcome(headResult)
	}

	result.IsSuccess = downloadErr == nil
	return result
}

// guard runs fn on its own goroutine and recovers any panic so one probe's
// failure never takes down the other two or the worker process; a recovered
// panic is stored in *errp so the probe is reported as failed.
func (e *Engine) guard(wg *sync.WaitGroup, errp *error, fn func()) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.Log.Error("measurement probe panic recovered", zap.Any("panic", r))
			*errp = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	fn()
}

func (e *Engine) abortedResult(runID uuid.UUID, job broker.JobMessage, workerName, reason string) broker.ResultMessage {
	return broker.ResultMessage{
		RunID:          runID,
		JobID:          job.JobID,
		SubJobID:       job.SubJobID,
		WorkerName:     workerName,
		IsSuccess:      false,
		DownloadResult: domain.ErrOutcome[broker.DownloadResult](reason),
		PingResult:     domain.ErrOutcome[broker.MinMaxAvg](reason),
		HeadResult:     domain.ErrOutcome[broker.MinMaxAvg](reason),
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
