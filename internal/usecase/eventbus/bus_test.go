package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

func newTestBus(opts ...Option) *Bus {
	return New(nil, opts...)
}

func newEvent(t domain.EventType) domain.Event {
	return domain.NewEvent(t, "s1", nil)
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventWorkerDispatched, func(_ context.Context, e domain.Event) {
		if e.Type == domain.EventWorkerDispatched {
			got.Add(1)
		}
	})

	bus.Publish(context.Background(), newEvent(domain.EventWorkerDispatched))
	bus.Publish(context.Background(), newEvent(domain.EventGateOpened))
	bus.Close() // drain
	assert.Equal(t, int32(1), got.Load())
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) { got.Add(1) })

	bus.Publish(context.Background(), newEvent(domain.EventTurnStarted))
	bus.Publish(context.Background(), newEvent(domain.EventToolCallStarted))
	bus.Close()
	assert.Equal(t, int32(2), got.Load())
}

func TestDeliveryOrderPerSubscriber(t *testing.T) {
	bus := newTestBus()

	var mu sync.Mutex
	var seen []domain.EventType
	bus.SubscribeAll(func(_ context.Context, e domain.Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	})

	order := []domain.EventType{
		domain.EventTurnStarted,
		domain.EventWorkerDispatched,
		domain.EventWorkerCompleted,
		domain.EventGateOpened,
		domain.EventTurnCompleted,
	}
	for _, typ := range order {
		bus.Publish(context.Background(), newEvent(typ))
	}
	bus.Close()
	assert.Equal(t, order, seen)
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	unsub := bus.Subscribe(domain.EventGateOpened, func(_ context.Context, _ domain.Event) { got.Add(1) })
	unsub()
	unsub()

	bus.Publish(context.Background(), newEvent(domain.EventGateOpened))
	bus.Close()
	assert.Equal(t, int32(0), got.Load())
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventToolCallStarted, func(_ context.Context, _ domain.Event) { got.Add(1) })

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), newEvent(domain.EventToolCallStarted))
		}()
	}
	wg.Wait()
	bus.Close()
	assert.Equal(t, int32(100), got.Load())
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := newTestBus(WithQueueSize(1))

	release := make(chan struct{})
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) { <-release })

	start := time.Now()
	for range 10 {
		bus.Publish(context.Background(), newEvent(domain.EventToolCallStarted))
	}
	assert.Less(t, time.Since(start), time.Second)
	close(release)
	bus.Close()
	assert.GreaterOrEqual(t, bus.Dropped(), uint64(8))
}

func TestPanicRecovery(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventGateClosed, func(_ context.Context, _ domain.Event) { panic("boom") })
	bus.Subscribe(domain.EventGateClosed, func(_ context.Context, _ domain.Event) { got.Add(1) })

	bus.Publish(context.Background(), newEvent(domain.EventGateClosed))
	bus.Publish(context.Background(), newEvent(domain.EventGateClosed))
	bus.Close()
	assert.Equal(t, int32(2), got.Load())
}

func TestCloseDrainsAndRejectsNew(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventTurnCompleted, func(_ context.Context, _ domain.Event) {
		time.Sleep(50 * time.Millisecond)
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventTurnCompleted))
	bus.Close()
	assert.Equal(t, int32(1), got.Load())

	bus.Publish(context.Background(), newEvent(domain.EventTurnCompleted))
	bus.Close()
	assert.Equal(t, int32(1), got.Load())

	// Subscribing after close is a no-op.
	unsub := bus.SubscribeAll(func(context.Context, domain.Event) { got.Add(1) })
	unsub()
}
