package domain

import (
	"context"
	"errors"
)

// Queue errors
var (
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrDuplicateTransaction    = errors.New("transaction already queued")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidTransaction      = errors.New("invalid transaction")
	ErrQueueDestroyed          = errors.New("transaction queue destroyed")
)

// TransactionQueue tracks submitted transactions until they reach a terminal state.
// All table mutations are serialized; event delivery follows mutation order.
// Events are delivered by one drainer at a time. When another goroutine is
// already draining, a mutating call can return before listeners have seen
// its events; they are delivered in order by that drainer.
type TransactionQueue interface {
	AddTransaction(draft *TransactionDraft) (*QueuedTransaction, error)
	UpdateTransaction(id string, update *TransactionUpdate) (*QueuedTransaction, error)
	RemoveTransaction(id string) bool
	GetTransaction(id string) *QueuedTransaction
	GetTransactions(filter *TransactionFilter) []*QueuedTransaction
	ClearQueue(chainID *uint64)

	// CancelTransaction and MarkReplaced are the only paths into the
	// cancelled and replaced terminal states.
	CancelTransaction(id, reason string) (*QueuedTransaction, error)
	MarkReplaced(id, replacementHash string) (*QueuedTransaction, error)

	AddEventListener(listener EventListener) ListenerID
	RemoveEventListener(id ListenerID) bool

	Stats() *QueueStats
	// Destroy stops every monitor and waits for them to exit.
	// It must not be called from inside an event listener.
	Destroy()
}

// QueueStats is a point-in-time summary of the queue
type QueueStats struct {
	Total          int              `json:"total"`
	ActiveMonitors int              `json:"active_monitors"`
	ByStatus       map[TxStatus]int `json:"by_status"`
	MaxQueueSize   int              `json:"max_queue_size"`
}

// QueueStore is a durable key-value slot holding the encoded transaction table
type QueueStore interface {
	// Load returns nil data when nothing has been stored yet.
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}
