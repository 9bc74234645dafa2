package fetch

import (
	"context"

	"golang.org/x/time/rate"
)

// Rate modes
const (
	RateModeWorker = "worker" // each worker paces at global/workers
	RateModeShared = "shared" // all workers share one limiter at global
)

// Pacer spaces out request starts
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPacers returns one pacer per worker for the given global requests/second.
// A non-positive global rate disables pacing
func NewPacers(global float64, workers int, mode string) []Pacer {
	if workers < 1 {
		workers = 1
	}
	out := make([]Pacer, workers)
	if global <= 0 {
		unlimited := rate.NewLimiter(rate.Inf, 1)
		for i := range out {
			out[i] = unlimited
		}
		return out
	}
	if mode == RateModeShared {
		shared := rate.NewLimiter(rate.Limit(global), 1)
		for i := range out {
			out[i] = shared
		}
		return out
	}
	per := rate.Limit(global / float64(workers))
	for i := range out {
		out[i] = rate.NewLimiter(per, 1)
	}
	return out
}
