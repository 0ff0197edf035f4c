package domain

import "time"

// EventType names a queue lifecycle event
type EventType string

const (
	EventTransactionAdded     EventType = "TRANSACTION_ADDED"
	EventTransactionUpdated   EventType = "TRANSACTION_UPDATED"
	EventTransactionRemoved   EventType = "TRANSACTION_REMOVED"
	EventTransactionConfirmed EventType = "TRANSACTION_CONFIRMED"
	EventTransactionFailed    EventType = "TRANSACTION_FAILED"
	EventQueueCleared         EventType = "QUEUE_CLEARED"
)

// Removal reasons carried by TRANSACTION_REMOVED
const (
	RemovalExplicit = "removed"
	RemovalEvicted  = "evicted"
)

// QueueEvent is delivered to listeners after the mutation is persisted.
// Transaction is set for added/updated/confirmed/failed, TransactionID for
// removed, ChainID (optional) for cleared.
type QueueEvent struct {
	Type          EventType          `json:"type"`
	Transaction   *QueuedTransaction `json:"transaction,omitempty"`
	TransactionID string             `json:"transaction_id,omitempty"`
	ChainID       *uint64            `json:"chain_id,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
}

// NewQueueEvent creates an event stamped with the current time
func NewQueueEvent(eventType EventType) QueueEvent {
	return QueueEvent{Type: eventType, Timestamp: time.Now()}
}

// ListenerID identifies a registered event listener
type ListenerID uint64

// EventListener receives queue events. Panics are recovered by the bus.
type EventListener func(QueueEvent)
