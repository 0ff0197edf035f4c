package event

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/metrics"
)

type subscriber struct {
	id       domain.ListenerID
	listener domain.EventListener
}

// Bus delivers queue events to listeners synchronously and in FIFO order.
//
// Events are appended with Enqueue (callers do this while holding their own
// mutation lock, which fixes the order) and delivered by Drain. Only one
// goroutine drains at a time; events enqueued meanwhile, including ones
// published from inside a listener, are delivered by that drainer in order.
type Bus struct {
	mu          sync.Mutex
	subscribers map[domain.ListenerID]domain.EventListener
	lastID      domain.ListenerID
	pending     []domain.QueueEvent
	draining    bool
	log         *zap.Logger
}

// NewBus creates an empty event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[domain.ListenerID]domain.EventListener),
		log:         logger.Named("event_bus"),
	}
}

// Subscribe registers a listener and returns its id
func (b *Bus) Subscribe(listener domain.EventListener) domain.ListenerID {
	if listener == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastID++
	b.subscribers[b.lastID] = listener
	return b.lastID
}

// Unsubscribe removes a listener. Events already being delivered may still
// reach it.
func (b *Bus) Unsubscribe(id domain.ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[id]; !ok {
		return false
	}
	delete(b.subscribers, id)
	return true
}

// ListenerCount returns the number of registered listeners
func (b *Bus) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Enqueue appends events for delivery without delivering them
func (b *Bus) Enqueue(events ...domain.QueueEvent) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	b.pending = append(b.pending, events...)
	b.mu.Unlock()
}

// Publish enqueues and drains in one step
func (b *Bus) Publish(events ...domain.QueueEvent) {
	b.Enqueue(events...)
	b.Drain()
}

// Drain delivers pending events. It returns immediately if another goroutine
// is already draining; that goroutine will deliver everything queued.
func (b *Bus) Drain() {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true

	for len(b.pending) > 0 {
		evt := b.pending[0]
		b.pending[0] = domain.QueueEvent{}
		b.pending = b.pending[1:]
		subs := b.snapshotLocked()
		b.mu.Unlock()

		for _, sub := range subs {
			b.deliver(sub, evt)
		}
		metrics.RecordEvent(string(evt.Type))

		b.mu.Lock()
	}

	b.pending = nil
	b.draining = false
	b.mu.Unlock()
}

// snapshotLocked copies the listener set in registration order
func (b *Bus) snapshotLocked() []subscriber {
	subs := make([]subscriber, 0, len(b.subscribers))
	for id, l := range b.subscribers {
		subs = append(subs, subscriber{id: id, listener: l})
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
	return subs
}

func (b *Bus) deliver(sub subscriber, evt domain.QueueEvent) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordListenerPanic()
			b.log.Error("Event listener panicked",
				zap.Uint64("listener_id", uint64(sub.id)),
				zap.String("event_type", string(evt.Type)),
				zap.Error(fmt.Errorf("%v", r)),
			)
		}
	}()
	sub.listener(evt)
}
