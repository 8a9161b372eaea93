package workerrt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/broker"
	"github.com/benchfabric/benchfabric/internal/config"
	"github.com/benchfabric/benchfabric/internal/measure"
	"github.com/benchfabric/benchfabric/internal/metrics"
)

// Runtime is the worker process's job loop: consume job_exchange
// deliveries strictly one at a time, run the measurement engine, publish
// the result, acknowledge. A dedicated heartbeat task runs alongside it.
type Runtime struct {
	cfg        *config.WorkerConfig
	conn       *broker.Connection
	jobSub     *broker.Subscriber
	resultPub  *broker.Publisher
	statusPub  *broker.Publisher
	engine     *measure.Engine
	log        *zap.Logger
}

// New wires a Runtime from its configuration: declares the job subscriber
// bound to every configured topic, and the result/status publishers.
func New(cfg *config.WorkerConfig, conn *broker.Connection, log *zap.Logger) (*Runtime, error) {
	resultPub, err := broker.NewPublisher(conn, broker.ResultPublisherConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("workerrt: open result publisher: %w", err)
	}
	statusPub, err := broker.NewPublisher(conn, broker.StatusPublisherConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("workerrt: open status publisher: %w", err)
	}
	jobSub := broker.NewSubscriber(conn, broker.JobSubscriberConfig(cfg.Name, cfg.Topics), log)

	return &Runtime{
		cfg:       cfg,
		conn:      conn,
		jobSub:    jobSub,
		resultPub: resultPub,
		statusPub: statusPub,
		engine: &measure.Engine{
			SeqMax:              cfg.SeqMax,
			MaxDownloadDuration: cfg.MaxDownloadDuration,
			LoopDeadlineGuard:   cfg.PingLoopDeadlineGuard,
			Log:                 log,
		},
		log: log,
	}, nil
}

// Run drives the full worker lifecycle: emit Online, start the heartbeat
// task, consume jobs until ctx is cancelled, drain the in-flight job, emit
// Offline, and return.
func (r *Runtime) Run(ctx context.Context) error {
	now := time.Now().UTC()
	if err := r.publishStatus(ctx, broker.NewLifecycleStatus(r.cfg.Name, now, r.cfg.Topics, true)); err != nil {
		return fmt.Errorf("workerrt: emit online lifecycle: %w", err)
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	defer stopHeartbeat()
	go r.runHeartbeat(heartbeatCtx, r.cfg.HeartbeatInterval)

	deliveries := make(chan broker.Delivery)
	subErrCh := make(chan error, 1)
	go func() { subErrCh <- r.jobSub.Run(ctx, deliveries) }()

consumeLoop:
	for {
		select {
		case <-ctx.Done():
			break consumeLoop
		case d, ok := <-deliveries:
			if !ok {
				break consumeLoop
			}
			// Processing runs against an independent context so a shutdown
			// signal drains the in-flight job instead of aborting it mid-probe.
			r.handleDelivery(context.Background(), d)
		}
	}

	stopHeartbeat()
	offlineCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.publishStatus(offlineCtx, broker.NewLifecycleStatus(r.cfg.Name, time.Now().UTC(), r.cfg.Topics, false)); err != nil {
		r.log.Warn("failed to emit offline lifecycle", zap.Error(err))
	}

	_ = r.jobSub.Close()
	_ = r.resultPub.Close()
	_ = r.statusPub.Close()
	return r.conn.Close()
}

func (r *Runtime) handleDelivery(ctx context.Context, d broker.Delivery) {
	defer func() {
		if err := d.Ack(); err != nil {
			r.log.Error("failed to ack job delivery", zap.Error(err))
		}
	}()

	var envelope broker.WorkerJobEnvelope
	if err := json.Unmarshal(d.Body, &envelope); err != nil {
		r.log.Error("failed to parse job envelope", zap.Error(err))
		return
	}
	job := envelope.Payload

	metrics.JobsActive.Set(1)
	defer metrics.JobsActive.Set(0)

	runID := uuid.New()
	jobStatus := broker.JobStatus{RunID: runID, JobID: job.JobID, SubJobID: job.SubJobID, WorkerName: r.cfg.Name}
	if err := r.publishStatus(ctx, broker.NewJobStatus(r.cfg.Name, time.Now().UTC(), jobStatus)); err != nil {
		r.log.Warn("failed to publish job-started status", zap.Error(err))
	}

	started := time.Now()
	result := r.engine.Run(ctx, job, r.cfg.Name)
	result.RunID = runID
	metrics.JobDuration.Observe(time.Since(started).Seconds())

	if err := r.publishStatus(ctx, broker.NewJobClearedStatus(r.cfg.Name, time.Now().UTC())); err != nil {
		r.log.Warn("failed to publish job-cleared status", zap.Error(err))
	}

	outcome := "false"
	if result.IsSuccess {
		outcome = "true"
	}
	metrics.JobsProcessedTotal.WithLabelValues(outcome).Inc()
	if dl, ok := result.DownloadResult.Value(); ok {
		metrics.DownloadThroughputMbps.Observe(dl.DownloadSpeedMbps)
	}

	body, err := json.Marshal(broker.WorkerResultEnvelope{JobID: job.JobID, Result: result})
	if err != nil {
		r.log.Error("failed to marshal result envelope", zap.Error(err))
		return
	}
	if err := r.resultPub.Publish(ctx, "", body); err != nil {
		r.log.Error("failed to publish result", zap.Error(err))
	}
}

func (r *Runtime) publishStatus(ctx context.Context, status broker.StatusMessage) error {
	body, err := json.Marshal(broker.WorkerStatusEnvelope{Status: status})
	if err != nil {
		return fmt.Errorf("marshal status envelope: %w", err)
	}
	return r.statusPub.Publish(ctx, "", body)
}
