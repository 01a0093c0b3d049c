// Package retry calls functions again when they fail for transient reasons.
package retry

import (
	"context"
	"time"
)

// Backoff waits before the n-th retry (n starts with 1).
//
// It returns ctx.Err() when ctx is done while waiting.
type Backoff func(ctx context.Context, n int) error

// Static waits for the same interval for every retry.
func Static(interval time.Duration) Backoff {
	return Exponential(interval, 1, 0)
}

// Exponential waits initial * factor^(n-1) for the n-th retry.
//
// When ceiling is positive, intervals are capped by it.
func Exponential(initial time.Duration, factor float64, ceiling time.Duration) Backoff {
	return func(ctx context.Context, n int) error {
		interval := float64(initial)
		for i := 1; i < n; i++ {
			interval *= factor
			if 0 < ceiling && float64(ceiling) < interval {
				break
			}
		}
		d := time.Duration(interval)
		if 0 < ceiling && ceiling < d {
			d = ceiling
		}
		if d <= 0 {
			return ctx.Err()
		}

		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}

// Do calls fn, and calls it again while it returns retryable errors.
//
// # Args
//
// - ctx: context passed to fn and backoff
//
// - backoff: wait between calls
//
// - maxRetry: how many times fn can be called again. 0 means "never retry".
//
// - retryable: reports whether the error is transient
//
// - fn: function to be called
//
// # Returns
//
// - T: the last value fn returns
//
// - error: the last error fn returns, or ctx.Err() if ctx is done in waiting.
func Do[T any](
	ctx context.Context,
	backoff Backoff,
	maxRetry int,
	retryable func(error) bool,
	fn func(context.Context) (T, error),
) (T, error) {
	value, err := fn(ctx)
	for n := 1; err != nil && n <= maxRetry && retryable(err); n++ {
		if werr := backoff(ctx, n); werr != nil {
			return value, werr
		}
		value, err = fn(ctx)
	}
	return value, err
}
