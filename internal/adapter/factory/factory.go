package factory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alfanzaky/txqueue/internal/domain"
)

// ledgerReaderFactory is a thread-safe registry of ledger readers keyed by
// chain id. It is itself a LedgerReader that dispatches on the handle's chain.
type ledgerReaderFactory struct {
	mu      sync.RWMutex
	readers map[uint64]domain.LedgerReader
}

// LedgerReaderFactory registers per-chain readers and dispatches to them
type LedgerReaderFactory interface {
	domain.LedgerReader
	RegisterReader(chainID uint64, reader domain.LedgerReader)
	GetReader(chainID uint64) (domain.LedgerReader, error)
	Chains() []uint64
}

// NewLedgerReaderFactory creates an empty registry.
func NewLedgerReaderFactory() LedgerReaderFactory {
	return &ledgerReaderFactory{
		readers: make(map[uint64]domain.LedgerReader),
	}
}

// RegisterReader registers a reader for the given chain, replacing any previous one.
func (f *ledgerReaderFactory) RegisterReader(chainID uint64, reader domain.LedgerReader) {
	if reader == nil || chainID == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.readers[chainID] = reader
}

// GetReader returns the reader registered for a chain.
func (f *ledgerReaderFactory) GetReader(chainID uint64) (domain.LedgerReader, error) {
	f.mu.RLock()
	reader, ok := f.readers[chainID]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrChainNotSupported, chainID)
	}

	return reader, nil
}

// Chains lists the registered chain ids in ascending order.
func (f *ledgerReaderFactory) Chains() []uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	chains := make([]uint64, 0, len(f.readers))
	for id := range f.readers {
		chains = append(chains, id)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

// WaitForReceipt dispatches to the reader of handle.ChainID.
func (f *ledgerReaderFactory) WaitForReceipt(ctx context.Context, handle domain.Handle, attemptTimeout, pollInterval time.Duration) (*domain.Receipt, error) {
	reader, err := f.GetReader(handle.ChainID)
	if err != nil {
		return nil, err
	}
	return reader.WaitForReceipt(ctx, handle, attemptTimeout, pollInterval)
}
