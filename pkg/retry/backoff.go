package retry

import (
	"context"
	"math/rand"
	"time"
)

// BackoffStrategy defines the interface for computing retry delays.
type BackoffStrategy interface {
	// NextDelay returns the delay before the given attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with additive jitter:
// min(BaseDelay * 2^attempt, MaxDelay) plus a uniform random delay in
// [0, JitterMax).
type ExponentialBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	JitterMax time.Duration
}

// DefaultExponentialBackoff returns the backoff used for upstream API calls:
// 1s base doubling per attempt, 0-1000ms jitter, capped at 15s.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay: time.Second,
		MaxDelay:  15 * time.Second,
		JitterMax: time.Second,
	}
}

// NextDelay calculates the delay before the given attempt.
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := eb.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= eb.MaxDelay {
			delay = eb.MaxDelay
			break
		}
	}

	if eb.JitterMax > 0 {
		delay += time.Duration(rand.Int63n(int64(eb.JitterMax)))
	}

	return delay
}

// ConstantBackoff returns the same delay for every attempt.
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns the constant delay.
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until the context is cancelled.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
