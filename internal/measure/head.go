package measure

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benchfabric/benchfabric/internal/broker"
)

// runHead issues up to seqMax serial HEAD requests against url, stopping
// early at loopDeadline. Individual request failures are skipped and the
// sequence continues, mirroring the ping probe's tolerance of per-attempt
// failures; an empty latency vector is the only failure mode.
func runHead(ctx context.Context, client *http.Client, url string, seqMax int, loopDeadline time.Time) (broker.MinMaxAvg, error) {
	latencies := make([]float64, 0, seqMax)

	for i := 0; i < seqMax; i++ {
		if time.Now().After(loopDeadline) {
			break
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			continue
		}

		start := time.Now()
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		latencies = append(latencies, time.Since(start).Seconds()*1000)
	}

	if len(latencies) == 0 {
		return broker.MinMaxAvg{}, fmt.Errorf("no successful requests")
	}

	return summarize(latencies), nil
}
