package event

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("test", false)
	os.Exit(m.Run())
}

func removed(id string) domain.QueueEvent {
	evt := domain.NewQueueEvent(domain.EventTransactionRemoved)
	evt.TransactionID = id
	return evt
}

func TestBus_DeliversInEnqueueOrder(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe(func(evt domain.QueueEvent) { got = append(got, evt.TransactionID) })

	bus.Enqueue(removed("a"), removed("b"))
	bus.Enqueue(removed("c"))
	assert.Empty(t, got, "Enqueue alone must not deliver")

	bus.Drain()
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestBus_ListenersInRegistrationOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		bus.Subscribe(func(domain.QueueEvent) { order = append(order, i) })
	}

	bus.Publish(removed("x"))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBus_PanickingListenerIsIsolated(t *testing.T) {
	bus := NewBus()

	var delivered []string
	bus.Subscribe(func(domain.QueueEvent) { panic("boom") })
	bus.Subscribe(func(evt domain.QueueEvent) { delivered = append(delivered, evt.TransactionID) })

	require.NotPanics(t, func() {
		bus.Publish(removed("a"), removed("b"))
	})
	assert.Equal(t, []string{"a", "b"}, delivered)
}

func TestBus_PublishFromListenerKeepsOrder(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe(func(evt domain.QueueEvent) {
		got = append(got, evt.TransactionID)
		if evt.TransactionID == "first" {
			bus.Publish(removed("nested"))
		}
	})

	bus.Publish(removed("first"), removed("second"))
	assert.Equal(t, []string{"first", "second", "nested"}, got)
}

func TestBus_UnsubscribeDuringDelivery(t *testing.T) {
	bus := NewBus()

	var secondID domain.ListenerID
	var second []string
	bus.Subscribe(func(evt domain.QueueEvent) {
		if evt.TransactionID == "a" {
			bus.Unsubscribe(secondID)
		}
	})
	secondID = bus.Subscribe(func(evt domain.QueueEvent) { second = append(second, evt.TransactionID) })

	bus.Publish(removed("a"), removed("b"))

	// the snapshot for "a" was taken before the unsubscribe
	assert.Equal(t, []string{"a"}, second)
	assert.Equal(t, 1, bus.ListenerCount())
}

func TestBus_SubscribeAndUnsubscribe(t *testing.T) {
	bus := NewBus()

	assert.Equal(t, domain.ListenerID(0), bus.Subscribe(nil))

	id := bus.Subscribe(func(domain.QueueEvent) {})
	assert.NotZero(t, id)
	assert.Equal(t, 1, bus.ListenerCount())

	assert.True(t, bus.Unsubscribe(id))
	assert.False(t, bus.Unsubscribe(id))
	assert.Equal(t, 0, bus.ListenerCount())
}

func TestBus_ConcurrentPublishersSingleDrainer(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewBus()

	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0
	count := 0
	bus.Subscribe(func(domain.QueueEvent) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		count++
		mu.Unlock()

		mu.Lock()
		inFlight--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(removed("x"))
			}
		}()
	}
	wg.Wait()
	bus.Drain()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1000, count)
	assert.Equal(t, 1, maxInFlight)
}
