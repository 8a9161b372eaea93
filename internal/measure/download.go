package measure

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benchfabric/benchfabric/internal/broker"
)

const (
	downloadUserAgent = "curl/7.68.0"
	downloadAccept    = "*/*"
	readChunkSize     = 32 * 1024
)

// nextEvenSecond returns the next wall-clock instant that is a whole
// multiple of one second — the per-second log boundary.
func nextEvenSecond(t time.Time) time.Time {
	return t.Truncate(time.Second).Add(time.Second)
}

// runDownload performs the download probe: sleeps until downloadStartTime,
// issues one ranged GET, and reads the body in chunks until EOF or
// maxDuration elapses since downloadStartTime. total_bytes == 0 is a
// failure; is_success of the overall result depends solely on this probe.
func runDownload(ctx context.Context, client *http.Client, url string, startRange, endRange int64, jobStartTime, downloadStartTime time.Time, maxDuration time.Duration) (broker.DownloadResult, error) {
	if err := sleepUntil(ctx, downloadStartTime); err != nil {
		return broker.DownloadResult{}, err
	}

	deadline := downloadStartTime.Add(maxDuration)
	reqCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return broker.DownloadResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", startRange, endRange))
	req.Header.Set("User-Agent", downloadUserAgent)
	req.Header.Set("Accept", downloadAccept)

	requestSent := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return broker.DownloadResult{}, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return broker.DownloadResult{}, fmt.Errorf("request failed: %s", resp.Status)
	}

	var (
		totalBytes     int64
		intervalBytes  int64
		ttfbRecorded   bool
		timeToFirstByteMs float64
		logs           []broker.SecondSample
		buf            = make([]byte, readChunkSize)
	)
	nextLogTime := nextEvenSecond(requestSent)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if !ttfbRecorded {
				timeToFirstByteMs = time.Since(requestSent).Seconds() * 1000
				ttfbRecorded = true
			}
			totalBytes += int64(n)
			intervalBytes += int64(n)

			now := time.Now()
			if !now.Before(nextLogTime) {
				logs = append(logs, broker.SecondSample{
					Timestamp:        now,
					IntervalBytes:    intervalBytes,
					AccumulatedBytes: totalBytes,
				})
				intervalBytes = 0
				nextLogTime = nextEvenSecond(now)
			}
		}
		if readErr != nil {
			break
		}
		if time.Now().After(deadline) {
			break
		}
	}

	endTime := time.Now()
	elapsedSecs := endTime.Sub(requestSent).Seconds()

	if totalBytes == 0 {
		return broker.DownloadResult{}, fmt.Errorf("no bytes downloaded")
	}

	speedMbps := (float64(totalBytes) * 8) / (elapsedSecs * 1024 * 1024)

	return broker.DownloadResult{
		TotalBytes:         totalBytes,
		ElapsedSecs:        elapsedSecs,
		DownloadSpeedMbps:  speedMbps,
		JobStartTime:       jobStartTime,
		DownloadStartTime:  downloadStartTime,
		EndTime:            endTime,
		TimeToFirstByteMs:  timeToFirstByteMs,
		SecondBySecondLogs: logs,
	}, nil
}

// sleepUntil blocks until t or ctx cancellation, returning immediately if t
// is already in the past.
func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
