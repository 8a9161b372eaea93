package schedulerapi

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/broker"
	"github.com/benchfabric/benchfabric/internal/metrics"
	"github.com/benchfabric/benchfabric/internal/repository"
)

// Registry is the Scheduler Worker Registry (C5): a status_exchange
// consumer that folds Lifecycle/Job/Heartbeat status messages into the
// workers/topics tables, guarded by the monotonicity predicate every write
// carries in the repository layer.
type Registry struct {
	workers repository.WorkerRepository
	topics  repository.TopicRepository
	sub     *broker.Subscriber
	log     *zap.Logger
}

// NewRegistry wires a Registry against the scheduler's status subscriber.
func NewRegistry(conn *broker.Connection, workers repository.WorkerRepository, topics repository.TopicRepository, log *zap.Logger) *Registry {
	return &Registry{
		workers: workers,
		topics:  topics,
		sub:     broker.NewSubscriber(conn, broker.StatusSubscriberConfig(), log),
		log:     log,
	}
}

// Run consumes status_exchange until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	deliveries := make(chan broker.Delivery)
	go func() {
		if err := r.sub.Run(ctx, deliveries); err != nil {
			r.log.Error("status subscriber stopped", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return r.sub.Close()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			r.handle(ctx, d)
		}
	}
}

func (r *Registry) handle(ctx context.Context, d broker.Delivery) {
	var envelope broker.WorkerStatusEnvelope
	if err := json.Unmarshal(d.Body, &envelope); err != nil {
		r.log.Error("failed to parse status envelope", zap.Error(err))
		d.Nack(false)
		return
	}
	status := envelope.Status

	if err := r.apply(ctx, status); err != nil {
		r.log.Error("failed to apply status update", zap.String("worker_name", status.WorkerName), zap.Error(err))
		d.Nack(true)
		return
	}
	if err := d.Ack(); err != nil {
		r.log.Error("failed to ack status delivery", zap.Error(err))
	}
}

func (r *Registry) apply(ctx context.Context, status broker.StatusMessage) error {
	switch status.Kind {
	case broker.StatusKindLifecycle:
		if status.Lifecycle == nil {
			return fmt.Errorf("lifecycle status missing payload")
		}
		if status.Lifecycle.WorkerStatus == "online" {
			if err := r.workers.UpsertOnline(ctx, status.WorkerName, status.Timestamp); err != nil {
				return err
			}
			metrics.WorkersOnline.Inc()
			return r.topics.AssociateAll(ctx, status.WorkerName, status.Lifecycle.WorkerTopics)
		}
		if err := r.workers.UpsertOffline(ctx, status.WorkerName, status.Timestamp); err != nil {
			return err
		}
		metrics.WorkersOnline.Dec()
		return r.topics.RemoveAll(ctx, status.WorkerName)

	case broker.StatusKindJob:
		if status.Job == nil {
			return r.workers.SetCurrentJob(ctx, status.WorkerName, nil, status.Timestamp)
		}
		id := status.Job.JobID
		return r.workers.SetCurrentJob(ctx, status.WorkerName, &id, status.Timestamp)

	case broker.StatusKindHeartbeat:
		return r.workers.Touch(ctx, status.WorkerName, status.Timestamp)

	default:
		return fmt.Errorf("unknown status kind %q", status.Kind)
	}
}
