package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/metrics"
)

// MonitorConfig defines runtime options for confirmation monitors
type MonitorConfig struct {
	PollInterval        time.Duration
	AttemptTimeout      time.Duration
	ConfirmationTimeout time.Duration
	Retry               RetryConfig
	Debug               bool
}

// DefaultMonitorConfig returns the monitor defaults
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval:        5 * time.Second,
		AttemptTimeout:      10 * time.Second,
		ConfirmationTimeout: 5 * time.Minute,
		Retry:               DefaultRetryConfig(),
	}
}

// Sink receives the monitor's mutation requests. It returns false when the
// record is no longer owned by this monitor, which stops monitoring.
type Sink func(update *domain.TransactionUpdate) bool

// TransactionMonitor polls the ledger for one pending transaction and reports
// the outcome through its sink. It never touches queue storage directly.
type TransactionMonitor struct {
	id          string
	handle      domain.Handle
	submittedAt time.Time
	retryCount  int

	reader domain.LedgerReader
	cfg    MonitorConfig
	retry  *RetryPolicy
	sink   Sink
	log    *zap.Logger
}

// NewTransactionMonitor builds a monitor for a snapshot of a pending transaction
func NewTransactionMonitor(reader domain.LedgerReader, cfg MonitorConfig, tx *domain.QueuedTransaction, sink Sink) *TransactionMonitor {
	defaults := DefaultMonitorConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaults.AttemptTimeout
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = defaults.ConfirmationTimeout
	}

	return &TransactionMonitor{
		id:          tx.ID,
		handle:      tx.Handle(),
		submittedAt: tx.SubmittedAt,
		retryCount:  tx.RetryCount,
		reader:      reader,
		cfg:         cfg,
		retry:       NewRetryPolicy(cfg.Retry),
		sink:        sink,
		log:         logger.Named("monitor").With(logger.TxFields(tx.ID, tx.ChainID, tx.Hash)...),
	}
}

// Start launches polling. The overall deadline is measured from submission,
// so a monitor resumed after a restart keeps the original deadline.
func (m *TransactionMonitor) Start(parent context.Context) *Task {
	deadline := m.submittedAt.Add(m.cfg.ConfirmationTimeout)
	if m.cfg.Debug {
		m.log.Debug("Monitor started",
			logger.Duration("remaining", time.Until(deadline)),
			logger.Int("retry_count", m.retryCount),
		)
	}
	return StartTask(parent, deadline, m.poll, m.expire)
}

func (m *TransactionMonitor) poll(ctx context.Context) {
	for {
		receipt, err := m.attempt(ctx)
		if ctx.Err() != nil {
			return
		}

		if err == nil {
			metrics.RecordPoll(m.handle.ChainID, "receipt")
			m.finish(receipt)
			return
		}

		var wait time.Duration
		switch Classify(err) {
		case OutcomeCancelled:
			return
		case OutcomeInconclusive:
			metrics.RecordPoll(m.handle.ChainID, "pending")
			if m.cfg.Debug {
				m.log.Debug("Receipt not available yet")
			}
			wait = m.cfg.PollInterval
		default:
			metrics.RecordPoll(m.handle.ChainID, "error")
			if m.retry.Exhausted(m.retryCount) {
				m.fail(err)
				return
			}
			m.retryCount++
			metrics.RecordRetry(m.handle.ChainID)
			m.log.Warn("Receipt lookup failed, retrying",
				logger.Int("retry", m.retryCount),
				logger.Int("max_retries", m.retry.MaxRetries()),
				logger.ErrorField(err),
			)
			retryCount := m.retryCount
			if !m.sink(&domain.TransactionUpdate{RetryCount: &retryCount}) {
				return
			}
			wait = m.retry.Delay(m.retryCount)
		}

		if !sleep(ctx, wait) {
			return
		}
	}
}

// attempt runs one bounded read. A read that outlives its own timeout is
// reported as ErrReceiptTimeout whatever error the reader returned.
func (m *TransactionMonitor) attempt(ctx context.Context) (*domain.Receipt, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.AttemptTimeout)
	defer cancel()

	receipt, err := m.reader.WaitForReceipt(attemptCtx, m.handle, m.cfg.AttemptTimeout, m.cfg.PollInterval)
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", domain.ErrReceiptTimeout, err)
		}
		return nil, err
	}
	if receipt == nil {
		return nil, domain.ErrReceiptTimeout
	}
	return receipt, nil
}

func (m *TransactionMonitor) finish(receipt *domain.Receipt) {
	now := time.Now()
	update := &domain.TransactionUpdate{
		Receipt:           receipt.Clone(),
		BlockNumber:       domain.CopyBig(receipt.BlockNumber),
		GasUsed:           domain.CopyBig(receipt.GasUsed),
		EffectiveGasPrice: domain.CopyBig(receipt.EffectiveGasPrice),
		ConfirmedAt:       &now,
	}

	if receipt.Success {
		update.Status = domain.StatusPtr(domain.StatusConfirmed)
		m.log.Info("Transaction confirmed", zap.Stringer("block_number", receipt.BlockNumber))
	} else {
		update.Status = domain.StatusPtr(domain.StatusFailed)
		update.Error = domain.StringPtr(fmt.Sprintf("transaction reverted in block %s", receipt.BlockNumber))
		m.log.Warn("Transaction reverted", zap.Stringer("block_number", receipt.BlockNumber))
	}

	m.sink(update)
}

func (m *TransactionMonitor) fail(err error) {
	msg := fmt.Sprintf("receipt lookup failed after %d retries: %v", m.retryCount, err)
	m.log.Error("Transaction monitoring failed", logger.ErrorField(err))
	m.sink(&domain.TransactionUpdate{
		Status: domain.StatusPtr(domain.StatusFailed),
		Error:  &msg,
	})
}

func (m *TransactionMonitor) expire() {
	msg := fmt.Sprintf("transaction not confirmed within %s", m.cfg.ConfirmationTimeout)
	m.log.Warn("Transaction confirmation timed out")
	m.sink(&domain.TransactionUpdate{
		Status: domain.StatusPtr(domain.StatusTimeout),
		Error:  &msg,
	})
}
