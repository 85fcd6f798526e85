package service

import (
	"context"
	"math"
	"time"
)

// backoffDelay returns the exponential backoff wait for a retry attempt:
// base**attempt seconds, attempt starting at 0. A non-positive base disables
// waiting.
func backoffDelay(base float64, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	return time.Duration(math.Pow(base, float64(attempt)) * float64(time.Second))
}

// sleepContext sleeps for d unless the context is cancelled first. All retry,
// rate-limit and poll waits go through here so shutdown never blocks on a
// sleeping loop.
func sleepContext(ctx context.Context, d time.Duration) error {
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
