package notify

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// Sink is one delivery target for published events.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// RoleSink fans events out to the registry's clients holding any of roles.
type RoleSink struct {
	Registry *Registry
	Roles    []string
}

func (s RoleSink) Deliver(_ context.Context, ev Event) error {
	for _, role := range s.Roles {
		s.Registry.BroadcastToRole(role, ev)
	}
	return nil
}

// Publisher decouples producers from delivery: Publish enqueues and returns at
// once, Run hands queued events to every sink. Nothing is retried or persisted.
type Publisher struct {
	queue   chan Event
	sinks   []Sink
	log     *zap.Logger
	dropped atomic.Int64
}

func NewPublisher(buffer int, log *zap.Logger, sinks ...Sink) *Publisher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Publisher{
		queue: make(chan Event, buffer),
		sinks: sinks,
		log:   log,
	}
}

// Publish never blocks. When the queue is full the event is dropped.
func (p *Publisher) Publish(ev Event) {
	select {
	case p.queue <- ev:
	default:
		p.dropped.Add(1)
		p.log.Warn("notification queue full, event dropped",
			zap.String("type", string(ev.Type)),
			zap.String("product_id", ev.ProductID.String()),
		)
	}
}

func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Run dispatches until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.queue:
			p.dispatch(ctx, ev)
		}
	}
}

func (p *Publisher) dispatch(ctx context.Context, ev Event) {
	for _, s := range p.sinks {
		if err := s.Deliver(ctx, ev); err != nil {
			p.log.Warn("event delivery failed",
				zap.String("type", string(ev.Type)),
				zap.String("product_id", ev.ProductID.String()),
				zap.Error(err),
			)
		}
	}
}
