package peer

import (
	"context"
	"time"
)

// Backoff retries a fallible operation with bounded exponential
// delays. It is oblivious to the operation's semantics; the wrapped
// operation must tolerate running more than once (at-least-once).
type Backoff struct {
	// Delay precedes the first attempt and seeds the progression.
	Delay time.Duration
	// Multiplier grows the delay geometrically per attempt.
	Multiplier float64
	// MaxDelay caps the grown delay.
	MaxDelay time.Duration
	// Retries is the total number of attempts.
	Retries int
}

// DelayBefore returns the wait preceding attempt k (1-based):
// min(Delay * Multiplier^(k-1), MaxDelay).
func (b Backoff) DelayBefore(attempt int) time.Duration {
	d := b.Delay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * b.Multiplier)
		if d >= b.MaxDelay {
			return b.MaxDelay
		}
	}
	if d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}

// Run invokes op until it succeeds or Retries attempts have failed,
// waiting DelayBefore(k) ahead of attempt k. The last failure is
// returned once attempts are exhausted. Cancelling ctx aborts any
// pending wait.
func (b Backoff) Run(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= b.Retries; attempt++ {
		if wait := b.DelayBefore(attempt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				if lastErr != nil {
					return lastErr
				}
				return ctx.Err()
			case <-timer.C:
			}
		}

		if lastErr = op(ctx); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
