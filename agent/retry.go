package agent

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds local retries of Transient capability failures with
// exponential backoff.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy returns 3 attempts with 2s, 4s backoff capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: 2 * time.Second, MaxBackoff: 10 * time.Second, Multiplier: 2}
}

// Attempts returns the effective attempt bound (at least one).
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// NewBackOff returns a deterministic exponential schedule that stops after
// Attempts()-1 retries or when ctx is done.
func (p RetryPolicy) NewBackOff(ctx context.Context) backoff.BackOff {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	maxInterval := p.MaxBackoff
	if maxInterval <= 0 {
		maxInterval = time.Duration(math.MaxInt64)
	}
	initial := p.InitialBackoff
	if initial < 0 {
		initial = 0
	}

	exp := &backoff.ExponentialBackOff{
		InitialInterval:     initial,
		RandomizationFactor: 0,
		Multiplier:          mult,
		MaxInterval:         maxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.Attempts()-1)), ctx)
}
