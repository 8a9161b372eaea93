package schedulerapi

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/benchfabric/benchfabric/internal/broker"
	"github.com/benchfabric/benchfabric/internal/usecase"
)

// ResultConsumer is the result_exchange side of the Scheduler Job Manager
// (C4 §4.4 step "Result ingestion"): it deserializes each WorkerResult
// envelope and hands it to IngestResultUsecase, acknowledging only on full
// success so a crash between insert and ack is safely redelivered.
type ResultConsumer struct {
	ingest *usecase.IngestResultUsecase
	sub    *broker.Subscriber
	log    *zap.Logger
}

func NewResultConsumer(conn *broker.Connection, ingest *usecase.IngestResultUsecase, log *zap.Logger) *ResultConsumer {
	return &ResultConsumer{
		ingest: ingest,
		sub:    broker.NewSubscriber(conn, broker.ResultSubscriberConfig(), log),
		log:    log,
	}
}

// Run consumes result_exchange until ctx is cancelled.
func (c *ResultConsumer) Run(ctx context.Context) error {
	deliveries := make(chan broker.Delivery)
	go func() {
		if err := c.sub.Run(ctx, deliveries); err != nil {
			c.log.Error("result subscriber stopped", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return c.sub.Close()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

func (c *ResultConsumer) handle(ctx context.Context, d broker.Delivery) {
	var envelope broker.WorkerResultEnvelope
	if err := json.Unmarshal(d.Body, &envelope); err != nil {
		c.log.Error("failed to parse result envelope", zap.Error(err))
		// Malformed bodies will never parse on redelivery either; drop rather
		// than spin forever.
		d.Nack(false)
		return
	}

	if err := c.ingest.Execute(ctx, envelope); err != nil {
		c.log.Error("failed to ingest result", zap.Error(err))
		d.Nack(true)
		return
	}
	if err := d.Ack(); err != nil {
		c.log.Error("failed to ack result delivery", zap.Error(err))
	}
}
