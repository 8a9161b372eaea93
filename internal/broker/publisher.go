package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishConfirmTimeout = 5 * time.Second

// Publisher declares one exchange and publishes UTF-8 JSON bodies to it
// under publisher-confirms mode. It is safe for concurrent use: the
// channel is guarded by a mutex, since the job publisher on the HTTP API
// side is hot from multiple request handlers at once.
type Publisher struct {
	conn   *Connection
	cfg    PublisherConfig
	log    *zap.Logger
	mu     sync.Mutex
	ch     *amqp.Channel
}

// NewPublisher declares cfg.Exchange on a fresh channel and enables
// publisher confirms.
func NewPublisher(conn *Connection, cfg PublisherConfig, log *zap.Logger) (*Publisher, error) {
	p := &Publisher{conn: conn, cfg: cfg, log: log}
	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) open() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return fmt.Errorf("broker: enable confirms: %w", err)
	}
	ex := p.cfg.Exchange
	if err := ch.ExchangeDeclare(ex.Name, ex.Kind, ex.Durable, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("broker: declare exchange %s: %w", ex.Name, err)
	}
	p.ch = ch
	return nil
}

// Publish publishes an already-serialized JSON body under routingKey. If
// routingKey is empty, the publisher's configured fixed routing key is
// used instead (result/status publishers always publish under a fixed key;
// the job publisher supplies the Job's own routing_key per call).
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	if routingKey == "" {
		routingKey = p.cfg.RoutingKey
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		if err := p.open(); err != nil {
			return fmt.Errorf("broker: reopen publisher channel: %w", err)
		}
	}

	confirm := p.ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	publishCtx, cancel := context.WithTimeout(ctx, publishConfirmTimeout)
	defer cancel()

	err := p.ch.PublishWithContext(publishCtx,
		p.cfg.Exchange.Name,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("broker: publish to %s: %w", p.cfg.Exchange.Name, err)
	}

	select {
	case ack := <-confirm:
		if !ack.Ack {
			return fmt.Errorf("broker: broker nacked publish to %s", p.cfg.Exchange.Name)
		}
	case <-publishCtx.Done():
		return fmt.Errorf("broker: publish confirmation timeout on %s", p.cfg.Exchange.Name)
	}
	return nil
}

// Close closes the publisher's channel. The shared connection is owned by
// whoever constructed it and is closed separately.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	return p.ch.Close()
}
