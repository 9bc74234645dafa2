package guardrails

import (
	"context"
	"time"
)

// Timeouts is an optional budget bundle for one run.
// Zero values mean no extra timeout at that level
type Timeouts struct {
	// Run is the overall budget, lease to release
	Run time.Duration

	// Resolve caps the watermark queries
	Resolve time.Duration

	// Load caps the stage, bulk load and merge steps
	Load time.Duration
}

// WithRun returns a context limited by the run budget without extending any parent deadline
func WithRun(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Run)
}

// ForResolve returns a sub context for range resolution
func ForResolve(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Resolve)
}

// ForLoad returns a sub context for the load phase
func ForLoad(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Load)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout takes the tighter of d and the parent remainder; d <= 0 only adds cancellation
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
