package broker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	baseReconnectDelay = 1 * time.Second
	maxReconnectDelay  = 30 * time.Second
)

// Delivery wraps one consumed message with ack/nack callbacks bound to its
// delivery tag, so a handler can decide the outcome without reaching back
// into the AMQP channel directly.
type Delivery struct {
	Body []byte
	Ack  func() error
	Nack func(requeue bool) error
}

// Subscriber declares one exchange, one queue, binds it with the
// configured routing keys, and streams deliveries to a channel under
// manual ack with prefetch=1 — one unacknowledged message in flight per
// consumer at a time. It reconnects with exponential backoff on
// connection loss; each consumer owns its own channel, never shared
// across goroutines.
type Subscriber struct {
	conn      *Connection
	cfg       SubscriberConfig
	log       *zap.Logger
	queueName string

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
}

// NewSubscriber stores cfg but does not yet open a channel; Run does
// that so reconnects can rebuild the topology from scratch.
func NewSubscriber(conn *Connection, cfg SubscriberConfig, log *zap.Logger) *Subscriber {
	return &Subscriber{conn: conn, cfg: cfg, log: log, closeCh: make(chan struct{})}
}

// Run declares the topology, begins consuming, and pushes every delivery
// onto out. It blocks until ctx is cancelled or Close is called,
// transparently reconnecting in between.
func (s *Subscriber) Run(ctx context.Context, out chan<- Delivery) error {
	for {
		err := s.consumeOnce(ctx, out)
		if err == nil {
			return nil
		}

		select {
		case <-s.closeCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		s.log.Warn("broker subscriber lost connection, reconnecting",
			zap.String("exchange", s.cfg.Exchange.Name), zap.Error(err))

		for attempt := 0; ; attempt++ {
			select {
			case <-s.closeCh:
				return nil
			case <-ctx.Done():
				return nil
			default:
			}

			delay := time.Duration(math.Min(
				float64(baseReconnectDelay)*math.Pow(2, float64(attempt)),
				float64(maxReconnectDelay),
			))
			time.Sleep(delay)

			ch, queueName, derr := s.declare()
			if derr != nil {
				s.log.Error("broker subscriber reconnect failed", zap.Error(derr))
				continue
			}
			ch.Close()
			s.queueName = queueName
			break
		}
	}
}

func (s *Subscriber) declare() (*amqp.Channel, string, error) {
	ch, err := s.conn.Channel()
	if err != nil {
		return nil, "", err
	}
	ex := s.cfg.Exchange
	if err := ch.ExchangeDeclare(ex.Name, ex.Kind, ex.Durable, false, false, false, nil); err != nil {
		ch.Close()
		return nil, "", fmt.Errorf("broker: declare exchange %s: %w", ex.Name, err)
	}

	name := s.cfg.QueueName
	exclusive := name == ""
	autoDelete := name == ""
	q, err := ch.QueueDeclare(name, s.cfg.Durable, autoDelete, exclusive, false, nil)
	if err != nil {
		ch.Close()
		return nil, "", fmt.Errorf("broker: declare queue %q: %w", name, err)
	}

	keys := s.cfg.RoutingKeys
	if len(keys) == 0 {
		keys = []string{""}
	}
	for _, key := range keys {
		if err := ch.QueueBind(q.Name, key, ex.Name, false, nil); err != nil {
			ch.Close()
			return nil, "", fmt.Errorf("broker: bind queue %q to %q: %w", q.Name, key, err)
		}
	}

	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, "", fmt.Errorf("broker: set qos: %w", err)
	}

	return ch, q.Name, nil
}

func (s *Subscriber) consumeOnce(ctx context.Context, out chan<- Delivery) error {
	ch, queueName, err := s.declare()
	if err != nil {
		return err
	}
	defer ch.Close()

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: consume %q: %w", queueName, err)
	}

	s.log.Info("broker subscriber started", zap.String("queue", queueName))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.closeCh:
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("broker: delivery channel closed for %q", queueName)
			}
			tag := d.DeliveryTag
			localCh := ch
			delivery := Delivery{
				Body: d.Body,
				Ack:  func() error { return localCh.Ack(tag, false) },
				Nack: func(requeue bool) error { return localCh.Nack(tag, false, requeue) },
			}
			select {
			case out <- delivery:
			case <-ctx.Done():
				d.Nack(false, true)
				return nil
			}
		}
	}
}

// Close stops the subscriber's reconnect loop.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.closeCh)
	return nil
}
