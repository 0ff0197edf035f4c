package worker

import (
	"context"
	"errors"
	"time"

	"github.com/alfanzaky/txqueue/internal/domain"
)

// Outcome classifies a failed receipt lookup
type Outcome string

const (
	// OutcomeInconclusive: the attempt timed out, the transaction is still pending
	OutcomeInconclusive Outcome = "inconclusive"
	// OutcomeTransient: a retryable read failure that consumes a retry
	OutcomeTransient Outcome = "transient"
	// OutcomeCancelled: the monitor was stopped
	OutcomeCancelled Outcome = "cancelled"
)

// RetryConfig defines retry behavior for transient ledger read failures
type RetryConfig struct {
	MaxRetries        int           // Retries allowed before the transaction fails
	InitialDelay      time.Duration // Delay before the first retry
	MaxDelay          time.Duration // Upper bound for any delay
	BackoffMultiplier float64       // 1.0 keeps the delay fixed
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      5 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 1.0,
	}
}

// RetryPolicy applies a RetryConfig
type RetryPolicy struct {
	cfg RetryConfig
}

// NewRetryPolicy creates a policy, filling unset fields from the defaults
func NewRetryPolicy(cfg RetryConfig) *RetryPolicy {
	defaults := DefaultRetryConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaults.InitialDelay
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	return &RetryPolicy{cfg: cfg}
}

// MaxRetries returns the retry budget
func (p *RetryPolicy) MaxRetries() int {
	return p.cfg.MaxRetries
}

// Exhausted reports whether no retry is left after retryCount retries
func (p *RetryPolicy) Exhausted(retryCount int) bool {
	return retryCount >= p.cfg.MaxRetries
}

// Delay returns the wait before the given retry (1-based)
func (p *RetryPolicy) Delay(retry int) time.Duration {
	delay := float64(p.cfg.InitialDelay)
	for i := 1; i < retry; i++ {
		delay *= p.cfg.BackoffMultiplier
		if delay >= float64(p.cfg.MaxDelay) {
			return p.cfg.MaxDelay
		}
	}
	return time.Duration(delay)
}

// Classify maps a receipt lookup error to an outcome
func Classify(err error) Outcome {
	switch {
	case errors.Is(err, domain.ErrReceiptTimeout):
		return OutcomeInconclusive
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	default:
		return OutcomeTransient
	}
}
