package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alfanzaky/txqueue/internal/domain"
)

func TestRetryPolicy_Delay(t *testing.T) {
	tests := []struct {
		name     string
		cfg      RetryConfig
		retry    int
		expected time.Duration
	}{
		{
			name:     "fixed delay",
			cfg:      RetryConfig{MaxRetries: 3, InitialDelay: time.Second, BackoffMultiplier: 1},
			retry:    3,
			expected: time.Second,
		},
		{
			name:     "exponential second retry",
			cfg:      RetryConfig{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Minute, BackoffMultiplier: 2},
			retry:    2,
			expected: 2 * time.Second,
		},
		{
			name:     "exponential capped",
			cfg:      RetryConfig{MaxRetries: 10, InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiplier: 2},
			retry:    8,
			expected: 5 * time.Second,
		},
		{
			name:     "unset delay uses default",
			cfg:      RetryConfig{MaxRetries: 1},
			retry:    1,
			expected: DefaultRetryConfig().InitialDelay,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewRetryPolicy(tt.cfg)
			assert.Equal(t, tt.expected, p.Delay(tt.retry))
		})
	}
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	p := NewRetryPolicy(RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond})

	assert.False(t, p.Exhausted(0))
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))
	assert.Equal(t, 3, p.MaxRetries())

	none := NewRetryPolicy(RetryConfig{MaxRetries: -1})
	assert.Equal(t, 0, none.MaxRetries())
	assert.True(t, none.Exhausted(0))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Outcome
	}{
		{"receipt timeout", domain.ErrReceiptTimeout, OutcomeInconclusive},
		{"wrapped receipt timeout", fmt.Errorf("%w: slow node", domain.ErrReceiptTimeout), OutcomeInconclusive},
		{"cancelled", context.Canceled, OutcomeCancelled},
		{"rpc failure", errors.New("connection refused"), OutcomeTransient},
		{"unsupported chain", domain.ErrChainNotSupported, OutcomeTransient},
		{"deadline from caller", context.DeadlineExceeded, OutcomeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}
