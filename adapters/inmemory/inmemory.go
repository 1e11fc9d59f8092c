package inmemory

import (
	"context"
	"sync"

	cbus "github.com/next-trace/scg-query-bus/contract/bus"
)

// Publisher is a thread-safe in-memory implementation of cbus.EventPublisher.
// It records published events for tests and local runs.
type Publisher struct {
	mu     sync.Mutex
	events []cbus.IntegrationEvent
	opts   []cbus.PublishOptions
}

var _ cbus.EventPublisher = (*Publisher)(nil)

// New creates a new in-memory publisher.
func New() *Publisher { return &Publisher{} }

func (p *Publisher) PublishIntegration(
	ctx context.Context,
	e cbus.IntegrationEvent,
	opts cbus.PublishOptions,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.events = append(p.events, e)
	p.opts = append(p.opts, opts)
	p.mu.Unlock()

	return nil
}

// Recorded returns a copy of all events published so far, in publish order.
func (p *Publisher) Recorded() []cbus.IntegrationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]cbus.IntegrationEvent(nil), p.events...)
}

// Options returns a copy of the options passed alongside each event.
func (p *Publisher) Options() []cbus.PublishOptions {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]cbus.PublishOptions(nil), p.opts...)
}

// Reset drops everything recorded so far.
func (p *Publisher) Reset() {
	p.mu.Lock()
	p.events = nil
	p.opts = nil
	p.mu.Unlock()
}
