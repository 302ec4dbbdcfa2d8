// Package eventbus delivers orchestration events (turn, worker, tool and
// gate progress) to front ends and loggers.
package eventbus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// DefaultQueueSize is the per-subscriber buffer.
const DefaultQueueSize = 256

type delivery struct {
	ctx   context.Context
	event domain.Event
}

type subscriber struct {
	id      uint64
	typ     domain.EventType // empty = every event
	handler domain.EventHandler
	queue   chan delivery
}

// Bus is an in-process, goroutine-safe event bus. Every subscriber has its
// own queue and goroutine, so a subscriber sees events in publish order and
// a slow subscriber never delays the publisher or its peers. Events that do
// not fit in a full queue are dropped and counted.
type Bus struct {
	mu        sync.RWMutex
	subs      map[uint64]*subscriber
	nextID    atomic.Uint64
	dropped   atomic.Uint64
	queueSize int
	logger    *slog.Logger
	wg        sync.WaitGroup
	closed    bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueSize sets the per-subscriber buffer.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// New creates an event bus.
func New(logger *slog.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Bus{
		subs:      make(map[uint64]*subscriber),
		queueSize: DefaultQueueSize,
		logger:    logger,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Publish enqueues event for every matching subscriber without blocking.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.typ != "" && sub.typ != event.Type {
			continue
		}
		select {
		case sub.queue <- delivery{ctx: ctx, event: event}:
		default:
			b.dropped.Add(1)
			b.logger.Debug("event dropped, subscriber queue full",
				"event", string(event.Type), "subscriber", sub.id)
		}
	}
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	return b.add(eventType, handler)
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	return b.add("", handler)
}

func (b *Bus) add(typ domain.EventType, handler domain.EventHandler) func() {
	sub := &subscriber{
		id:      b.nextID.Add(1),
		typ:     typ,
		handler: handler,
		queue:   make(chan delivery, b.queueSize),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.subs[sub.id] = sub
	b.wg.Add(1)
	b.mu.Unlock()

	go b.drain(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[sub.id]; ok {
				delete(b.subs, sub.id)
				close(sub.queue)
			}
		})
	}
}

func (b *Bus) drain(sub *subscriber) {
	defer b.wg.Done()
	for d := range sub.queue {
		b.deliver(sub, d)
	}
}

func (b *Bus) deliver(sub *subscriber, d delivery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", string(d.event.Type),
				"panic", r,
			)
		}
	}()
	sub.handler(d.ctx, d.event)
}

// Dropped returns how many events were discarded because a subscriber's
// queue was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close prevents new publishes and waits until every queued event has been
// handled. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.queue)
	}
	b.mu.Unlock()
	b.wg.Wait()
}
