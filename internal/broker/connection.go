package broker

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Endpoint holds the pieces NewConnection needs: a RABBITMQ_ENDPOINT style
// URL plus the credentials that travel out-of-band in the original.
type Endpoint struct {
	URL      string
	Username string
	Password string
}

// schemeIsTLS mirrors the original's scheme table: amqp/http are plain,
// amqps/amqps+ssl/amqps+tls/https select TLS without client auth.
func schemeIsTLS(scheme string) (bool, error) {
	switch scheme {
	case "amqp", "http":
		return false, nil
	case "amqps", "amqps+ssl", "amqps+tls", "https":
		return true, nil
	default:
		return false, fmt.Errorf("broker: invalid scheme %q for RABBITMQ_ENDPOINT", scheme)
	}
}

// dialURL builds the amqp091-go dial URL (always amqp/amqps, since the
// TLS decision is made separately via amqp.DialConfig/DialTLS) from the
// endpoint's host/port and injected credentials.
func dialURL(ep Endpoint, useTLS bool) (string, error) {
	parsed, err := url.Parse(ep.URL)
	if err != nil {
		return "", fmt.Errorf("broker: parse RABBITMQ_ENDPOINT: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("broker: RABBITMQ_ENDPOINT must contain a host")
	}
	port := parsed.Port()
	if port == "" {
		port = "5672"
	}
	scheme := "amqp"
	if useTLS {
		scheme = "amqps"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(ep.Username, ep.Password),
		Host:   fmt.Sprintf("%s:%s", host, port),
	}
	return u.String(), nil
}

// Connection wraps one lazily-opened amqp091-go connection shared across
// every Publisher and Subscriber in the process. Channels are per-role.
type Connection struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	ep     Endpoint
	useTLS bool
	log    *zap.Logger
}

// NewConnection parses scheme/host out of ep.URL and returns an unopened
// handle; the first Channel() call opens the underlying TCP connection.
func NewConnection(ep Endpoint, log *zap.Logger) (*Connection, error) {
	parsed, err := url.Parse(ep.URL)
	if err != nil {
		return nil, fmt.Errorf("broker: parse RABBITMQ_ENDPOINT: %w", err)
	}
	useTLS, err := schemeIsTLS(parsed.Scheme)
	if err != nil {
		return nil, err
	}
	return &Connection{ep: ep, useTLS: useTLS, log: log}, nil
}

// Channel returns a fresh AMQP channel on the shared connection, opening the
// connection first if this is the first caller.
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		dial, err := dialURL(c.ep, c.useTLS)
		if err != nil {
			return nil, err
		}
		var conn *amqp.Connection
		if c.useTLS {
			conn, err = amqp.DialTLS(dial, &tls.Config{MinVersion: tls.VersionTLS12})
		} else {
			conn, err = amqp.Dial(dial)
		}
		if err != nil {
			return nil, fmt.Errorf("broker: dial: %w", err)
		}
		c.conn = conn
		c.log.Info("broker connection opened", zap.Bool("tls", c.useTLS))
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("broker: open channel: %w", err)
	}
	return ch, nil
}

// NotifyClose proxies the underlying connection's close notifications so
// publishers/subscribers can drive their own reconnect loops.
func (c *Connection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		close(receiver)
		return receiver
	}
	return conn.NotifyClose(receiver)
}

// Close tears down the shared connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
