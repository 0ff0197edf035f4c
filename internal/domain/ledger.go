package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrReceiptTimeout means a single read attempt ended without a receipt.
	// It is inconclusive, not a failure.
	ErrReceiptTimeout = errors.New("receipt not available within attempt timeout")
	// ErrChainNotSupported means no reader is registered for the chain
	ErrChainNotSupported = errors.New("chain not supported")
)

// LedgerReader fetches receipts for submitted transactions
type LedgerReader interface {
	// WaitForReceipt polls for the receipt every pollInterval until it is found,
	// attemptTimeout elapses (ErrReceiptTimeout) or ctx is done.
	WaitForReceipt(ctx context.Context, handle Handle, attemptTimeout, pollInterval time.Duration) (*Receipt, error)
}
