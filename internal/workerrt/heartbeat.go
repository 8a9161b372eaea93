package workerrt

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/broker"
	"github.com/benchfabric/benchfabric/internal/metrics"
)

// runHeartbeat ticks every interval, emitting a Heartbeat status until ctx
// is cancelled. It is a long-lived task cancellable by the shutdown signal.
func (r *Runtime) runHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := broker.NewHeartbeatStatus(r.cfg.Name, time.Now().UTC())
			if err := r.publishStatus(ctx, status); err != nil {
				r.log.Warn("failed to publish heartbeat status", zap.Error(err))
				continue
			}
			metrics.HeartbeatsSentTotal.Inc()
		}
	}
}
