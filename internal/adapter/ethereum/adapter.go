package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
)

const defaultDialTimeout = 10 * time.Second

// ReceiptFetcher is the part of ethclient.Client the adapter needs
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Adapter implements domain.LedgerReader for one EVM chain.
// It polls eth_getTransactionReceipt until the transaction is mined.
type Adapter struct {
	chainID uint64
	client  ReceiptFetcher
	close   func()
}

var _ domain.LedgerReader = (*Adapter)(nil)

// NewAdapter wraps an existing receipt fetcher
func NewAdapter(chainID uint64, client ReceiptFetcher) *Adapter {
	return &Adapter{chainID: chainID, client: client}
}

// Dial connects to a JSON-RPC endpoint for chainID
func Dial(ctx context.Context, chainID uint64, rpcURL string, timeout time.Duration) (*Adapter, error) {
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := ethclient.DialContext(dialCtx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain %d: %w", chainID, err)
	}

	logger.Info("Connected to chain RPC", logger.Uint64("chain_id", chainID))

	return &Adapter{chainID: chainID, client: client, close: client.Close}, nil
}

// ChainID returns the chain this adapter reads from
func (a *Adapter) ChainID() uint64 {
	return a.chainID
}

// Close releases the RPC connection when the adapter owns one
func (a *Adapter) Close() {
	if a.close != nil {
		a.close()
	}
}

// WaitForReceipt polls until the receipt exists. A transaction that is not
// mined within attemptTimeout yields domain.ErrReceiptTimeout; any other RPC
// failure is returned as is.
func (a *Adapter) WaitForReceipt(ctx context.Context, handle domain.Handle, attemptTimeout, pollInterval time.Duration) (*domain.Receipt, error) {
	if handle.ChainID != a.chainID {
		return nil, fmt.Errorf("%w: adapter serves chain %d, got %d", domain.ErrChainNotSupported, a.chainID, handle.ChainID)
	}
	hash, err := parseHash(handle.Hash)
	if err != nil {
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-attemptCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, domain.ErrReceiptTimeout
		case <-timer.C:
		}

		receipt, err := a.client.TransactionReceipt(attemptCtx, hash)
		switch {
		case err == nil && receipt != nil:
			return toDomainReceipt(receipt), nil
		case err == nil, errors.Is(err, geth.NotFound):
			timer.Reset(pollInterval)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case attemptCtx.Err() != nil:
			return nil, domain.ErrReceiptTimeout
		default:
			return nil, fmt.Errorf("failed to fetch receipt for %s on chain %d: %w", handle.Hash, a.chainID, err)
		}
	}
}

func parseHash(hash string) (common.Hash, error) {
	h := strings.TrimSpace(hash)
	if !strings.HasPrefix(h, "0x") && !strings.HasPrefix(h, "0X") {
		h = "0x" + h
	}
	if len(h) != 2+2*common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: malformed transaction hash %q", domain.ErrInvalidTransaction, hash)
	}
	return common.HexToHash(h), nil
}

func toDomainReceipt(r *types.Receipt) *domain.Receipt {
	out := &domain.Receipt{
		TransactionHash: r.TxHash.Hex(),
		BlockHash:       r.BlockHash.Hex(),
		BlockNumber:     domain.CopyBig(r.BlockNumber),
		GasUsed:         new(big.Int).SetUint64(r.GasUsed),
		Success:         r.Status == types.ReceiptStatusSuccessful,
	}
	if r.EffectiveGasPrice != nil {
		out.EffectiveGasPrice = domain.CopyBig(r.EffectiveGasPrice)
	}
	return out
}
