package usecase

import (
	"context"
	"sync"
)

// mockPublisher is an in-memory JobPublisher for usecase tests.
type mockPublisher struct {
	mu        sync.Mutex
	published []publishedMessage
	PublishFn func(ctx context.Context, routingKey string, body []byte) error
}

type publishedMessage struct {
	RoutingKey string
	Body       []byte
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, routingKey, body)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMessage{RoutingKey: routingKey, Body: body})
	return nil
}

func (m *mockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

// mockProbe is an in-memory upstream.Probe for usecase tests.
type mockProbe struct {
	ContentLengthValue int64
	Err                error
}

func (p *mockProbe) ContentLength(ctx context.Context, url string) (int64, error) {
	if p.Err != nil {
		return 0, p.Err
	}
	return p.ContentLengthValue, nil
}
