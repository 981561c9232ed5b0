// Package backoff provides delay computation and context-aware pausing for
// retry loops against throttled cloud APIs.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Exponential returns base * 2^attempt, capped at max.
//
// Attempt is zero-based: attempt 0 yields base, attempt 1 yields 2*base, and
// so on. A non-positive max disables the cap.
func Exponential(base time.Duration, attempt int, max time.Duration) time.Duration {
	d := base << uint(attempt)
	// Guard against shift overflow for large attempt values.
	if d < base {
		d = max
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

// Jittered returns a randomized delay for queue-publish retries:
// base * min(retries, 4) * (0.5 + rand), spreading concurrent retriers
// across a window instead of synchronizing them.
func Jittered(base time.Duration, retries int) time.Duration {
	factor := retries
	if factor > 4 {
		factor = 4
	}
	return time.Duration(float64(base) * float64(factor) * (0.5 + rand.Float64()))
}

// Sleep pauses the calling goroutine for d without blocking other work.
// Returns early with the context error if ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
