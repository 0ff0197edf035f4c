package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// TxStatus is the lifecycle state of a queued transaction
type TxStatus string

// TxType classifies a transaction for display and audit only
type TxType string

// Transaction status constants
const (
	StatusPending   TxStatus = "pending"
	StatusConfirmed TxStatus = "confirmed"
	StatusFailed    TxStatus = "failed"
	StatusCancelled TxStatus = "cancelled"
	StatusReplaced  TxStatus = "replaced"
	StatusTimeout   TxStatus = "timeout"
)

// Transaction type constants
const (
	TypeTransfer TxType = "transfer"
	TypeApproval TxType = "approval"
	TypeSwap     TxType = "swap"
	TypeDispose  TxType = "dispose"
	TypeDonate   TxType = "donate"
	TypeUnknown  TxType = "unknown"
)

// IsValid checks if the status is one of the known statuses
func (s TxStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed,
		StatusCancelled, StatusReplaced, StatusTimeout:
		return true
	}
	return false
}

// IsTerminal checks if the status is final (no more monitoring)
func (s TxStatus) IsTerminal() bool {
	return s.IsValid() && s != StatusPending
}

// IsValid checks if the type is one of the known types
func (t TxType) IsValid() bool {
	switch t {
	case TypeTransfer, TypeApproval, TypeSwap, TypeDispose, TypeDonate, TypeUnknown:
		return true
	}
	return false
}

// Handle identifies a submitted transaction on a ledger
type Handle struct {
	ChainID uint64 `json:"chain_id"`
	Hash    string `json:"hash"`
}

// ID returns the queue key for the handle
func (h Handle) ID() string {
	return TransactionID(h.ChainID, h.Hash)
}

// NormalizeHash lowercases and trims a transaction hash
func NormalizeHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

// TransactionID derives the queue key from (chainID, hash). Hash casing is ignored.
func TransactionID(chainID uint64, hash string) string {
	return fmt.Sprintf("%d:%s", chainID, NormalizeHash(hash))
}

// Receipt is the conclusive ledger response for a transaction
type Receipt struct {
	TransactionHash   string   `json:"transaction_hash"`
	BlockHash         string   `json:"block_hash"`
	BlockNumber       *big.Int `json:"block_number"`
	GasUsed           *big.Int `json:"gas_used"`
	EffectiveGasPrice *big.Int `json:"effective_gas_price"`
	Success           bool     `json:"success"`
}

// Clone returns a deep copy of the receipt
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	out := *r
	out.BlockNumber = CopyBig(r.BlockNumber)
	out.GasUsed = CopyBig(r.GasUsed)
	out.EffectiveGasPrice = CopyBig(r.EffectiveGasPrice)
	return &out
}

// QueuedTransaction represents one submitted transaction tracked by the queue
type QueuedTransaction struct {
	ID      string   `json:"id"`
	Hash    string   `json:"hash"`
	ChainID uint64   `json:"chain_id"`
	Status  TxStatus `json:"status"`
	Type    TxType   `json:"type"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// Arbitrary precision amounts (wei)
	Value             *big.Int `json:"value,omitempty"`
	GasLimit          *big.Int `json:"gas_limit,omitempty"`
	GasPrice          *big.Int `json:"gas_price,omitempty"`
	GasUsed           *big.Int `json:"gas_used,omitempty"`
	EffectiveGasPrice *big.Int `json:"effective_gas_price,omitempty"`
	BlockNumber       *big.Int `json:"block_number,omitempty"`

	Receipt *Receipt `json:"receipt,omitempty"`
	Error   string   `json:"error,omitempty"`

	SubmittedAt time.Time  `json:"submitted_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`

	RetryCount int                    `json:"retry_count"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Handle returns the ledger handle of the transaction
func (t *QueuedTransaction) Handle() Handle {
	return Handle{ChainID: t.ChainID, Hash: t.Hash}
}

// IsFinalStatus checks if the transaction reached a terminal state
func (t *QueuedTransaction) IsFinalStatus() bool {
	return t.Status.IsTerminal()
}

// Clone returns a deep copy so callers never alias queue internals
func (t *QueuedTransaction) Clone() *QueuedTransaction {
	if t == nil {
		return nil
	}
	out := *t
	out.Value = CopyBig(t.Value)
	out.GasLimit = CopyBig(t.GasLimit)
	out.GasPrice = CopyBig(t.GasPrice)
	out.GasUsed = CopyBig(t.GasUsed)
	out.EffectiveGasPrice = CopyBig(t.EffectiveGasPrice)
	out.BlockNumber = CopyBig(t.BlockNumber)
	out.Receipt = t.Receipt.Clone()
	if t.ConfirmedAt != nil {
		confirmedAt := *t.ConfirmedAt
		out.ConfirmedAt = &confirmedAt
	}
	out.Metadata = CloneMetadata(t.Metadata)
	return &out
}

// CloneMetadata copies a metadata bag at every depth. Nested maps, slices
// and big integers are duplicated; other values are immutable and shared.
func CloneMetadata(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case *big.Int:
		return CopyBig(val)
	case big.Int:
		return CopyBig(&val)
	case map[string]interface{}:
		return CloneMetadata(val)
	case []interface{}:
		if val == nil {
			return val
		}
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// GetDuration returns the time between submission and confirmation
func (t *QueuedTransaction) GetDuration() *time.Duration {
	if t.ConfirmedAt == nil {
		return nil
	}
	duration := t.ConfirmedAt.Sub(t.SubmittedAt)
	return &duration
}

// TransactionDraft is the caller input for AddTransaction.
// id, status, submittedAt and retryCount are assigned by the queue.
type TransactionDraft struct {
	Hash        string
	ChainID     uint64
	Type        TxType
	Title       string
	Description string

	Value    *big.Int
	GasLimit *big.Int
	GasPrice *big.Int

	Metadata map[string]interface{}
}

// Validate checks the draft has a usable handle
func (d *TransactionDraft) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: draft is required", ErrInvalidTransaction)
	}
	if NormalizeHash(d.Hash) == "" {
		return fmt.Errorf("%w: hash is required", ErrInvalidTransaction)
	}
	if d.ChainID == 0 {
		return fmt.Errorf("%w: chain id is required", ErrInvalidTransaction)
	}
	if d.Type != "" && !d.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, d.Type)
	}
	for name, v := range map[string]*big.Int{"value": d.Value, "gas_limit": d.GasLimit, "gas_price": d.GasPrice} {
		if v != nil && v.Sign() < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidTransaction, name)
		}
	}
	return nil
}

// TransactionUpdate is a partial update; nil fields are left unchanged.
// Metadata keys are merged into the existing bag.
type TransactionUpdate struct {
	Status            *TxStatus
	GasUsed           *big.Int
	EffectiveGasPrice *big.Int
	BlockNumber       *big.Int
	Receipt           *Receipt
	Error             *string
	ConfirmedAt       *time.Time
	RetryCount        *int
	Metadata          map[string]interface{}
}

// TransactionFilter narrows GetTransactions; zero values match everything
type TransactionFilter struct {
	ChainID *uint64
	Status  TxStatus
	Type    TxType
}

// Matches reports whether the transaction passes the filter
func (f *TransactionFilter) Matches(t *QueuedTransaction) bool {
	if f == nil {
		return true
	}
	if f.ChainID != nil && *f.ChainID != t.ChainID {
		return false
	}
	if f.Status != "" && f.Status != t.Status {
		return false
	}
	if f.Type != "" && f.Type != t.Type {
		return false
	}
	return true
}

// CopyBig copies a big integer, preserving nil
func CopyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// StatusPtr returns a pointer to the status, for building updates
func StatusPtr(s TxStatus) *TxStatus {
	return &s
}

// StringPtr returns a pointer to the string, for building updates
func StringPtr(s string) *string {
	return &s
}
