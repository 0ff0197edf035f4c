package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfanzaky/txqueue/internal/domain"
)

const txHash = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	respond func(call int) (*types.Receipt, error)
}

func (f *fakeFetcher) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.respond(call)
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func minedReceipt(status uint64) *types.Receipt {
	return &types.Receipt{
		Status:            status,
		TxHash:            common.HexToHash(txHash),
		BlockHash:         common.HexToHash("0x01"),
		BlockNumber:       big.NewInt(19000000),
		GasUsed:           21000,
		EffectiveGasPrice: big.NewInt(25000000000),
	}
}

func TestWaitForReceipt_PollsUntilMined(t *testing.T) {
	fetcher := &fakeFetcher{respond: func(call int) (*types.Receipt, error) {
		if call < 3 {
			return nil, geth.NotFound
		}
		return minedReceipt(types.ReceiptStatusSuccessful), nil
	}}
	adapter := NewAdapter(1, fetcher)

	receipt, err := adapter.WaitForReceipt(context.Background(), domain.Handle{ChainID: 1, Hash: txHash}, time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, receipt.Success)
	assert.Equal(t, txHash, receipt.TransactionHash)
	assert.Equal(t, "19000000", receipt.BlockNumber.String())
	assert.Equal(t, "21000", receipt.GasUsed.String())
	assert.Equal(t, "25000000000", receipt.EffectiveGasPrice.String())
	assert.Equal(t, 3, fetcher.Calls())
}

func TestWaitForReceipt_Reverted(t *testing.T) {
	fetcher := &fakeFetcher{respond: func(int) (*types.Receipt, error) {
		return minedReceipt(types.ReceiptStatusFailed), nil
	}}

	receipt, err := NewAdapter(1, fetcher).WaitForReceipt(context.Background(), domain.Handle{ChainID: 1, Hash: txHash}, time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.False(t, receipt.Success)
}

func TestWaitForReceipt_AttemptTimeout(t *testing.T) {
	fetcher := &fakeFetcher{respond: func(int) (*types.Receipt, error) {
		return nil, geth.NotFound
	}}

	_, err := NewAdapter(1, fetcher).WaitForReceipt(context.Background(), domain.Handle{ChainID: 1, Hash: txHash}, 20*time.Millisecond, 2*time.Millisecond)
	assert.ErrorIs(t, err, domain.ErrReceiptTimeout)
	assert.Greater(t, fetcher.Calls(), 1)
}

func TestWaitForReceipt_CallerCancel(t *testing.T) {
	fetcher := &fakeFetcher{respond: func(int) (*types.Receipt, error) {
		return nil, geth.NotFound
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAdapter(1, fetcher).WaitForReceipt(ctx, domain.Handle{ChainID: 1, Hash: txHash}, time.Second, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrReceiptTimeout)
}

func TestWaitForReceipt_RPCError(t *testing.T) {
	rpcErr := errors.New("502 bad gateway")
	fetcher := &fakeFetcher{respond: func(int) (*types.Receipt, error) {
		return nil, rpcErr
	}}

	_, err := NewAdapter(1, fetcher).WaitForReceipt(context.Background(), domain.Handle{ChainID: 1, Hash: txHash}, time.Second, time.Millisecond)
	assert.ErrorIs(t, err, rpcErr)
	assert.NotErrorIs(t, err, domain.ErrReceiptTimeout)
	assert.Equal(t, 1, fetcher.Calls())
}

func TestWaitForReceipt_RejectsBadInput(t *testing.T) {
	fetcher := &fakeFetcher{respond: func(int) (*types.Receipt, error) {
		return minedReceipt(types.ReceiptStatusSuccessful), nil
	}}
	adapter := NewAdapter(1, fetcher)

	_, err := adapter.WaitForReceipt(context.Background(), domain.Handle{ChainID: 137, Hash: txHash}, time.Second, time.Millisecond)
	assert.ErrorIs(t, err, domain.ErrChainNotSupported)

	_, err = adapter.WaitForReceipt(context.Background(), domain.Handle{ChainID: 1, Hash: "0x1234"}, time.Second, time.Millisecond)
	assert.ErrorIs(t, err, domain.ErrInvalidTransaction)

	assert.Zero(t, fetcher.Calls())
}

func TestParseHash(t *testing.T) {
	h, err := parseHash(txHash[2:])
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash(txHash), h)

	_, err = parseHash("")
	assert.Error(t, err)
}

func TestAdapter_ChainIDAndClose(t *testing.T) {
	adapter := NewAdapter(10, &fakeFetcher{})
	assert.Equal(t, uint64(10), adapter.ChainID())
	assert.NotPanics(t, adapter.Close)
}
