// Package humanize adds small randomized delays and smooth scrolling so
// page interactions look like a person reading rather than a script.
package humanize

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrElementNotVisible is returned when an element cannot be found or has no visible bounds.
var ErrElementNotVisible = errors.New("element not visible or has no bounds")

// RandomDuration returns a random duration between min and max milliseconds.
func RandomDuration(minMs, maxMs int) time.Duration {
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	ms := minMs + rand.Intn(maxMs-minMs+1)
	return time.Duration(ms) * time.Millisecond
}

// SleepWithContext sleeps for the specified duration or until the context
// is canceled. Returns true if the sleep completed normally.
// Uses time.NewTimer instead of time.After to prevent timer leak.
func SleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// SleepWithJitter sleeps for the given duration plus/minus a random jitter.
// jitterPercent is the maximum jitter as a fraction (0.0 to 1.0), so
// SleepWithJitter(ctx, 1*time.Second, 0.2) sleeps for 0.8s-1.2s.
func SleepWithJitter(ctx context.Context, base time.Duration, jitterPercent float64) bool {
	if jitterPercent < 0 {
		jitterPercent = 0
	}
	if jitterPercent > 1 {
		jitterPercent = 1
	}

	jitterRange := float64(base) * jitterPercent
	jitter := (rand.Float64()*2 - 1) * jitterRange

	duration := time.Duration(float64(base) + jitter)
	if duration < 0 {
		duration = 0
	}

	return SleepWithContext(ctx, duration)
}

// RandomWait waits for a random duration between min and max milliseconds.
func RandomWait(ctx context.Context, minMs, maxMs int) bool {
	return SleepWithContext(ctx, RandomDuration(minMs, maxMs))
}

// SettleDelay returns a short random pause used after a navigation or
// scroll, long enough for lazy-loaded media to start fetching.
func SettleDelay() time.Duration {
	return RandomDuration(200, 500)
}
