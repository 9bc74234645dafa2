package fetch

import (
	"context"
	"sync/atomic"
	"time"

	"feedmirror/internal/platform/logger"
	"feedmirror/internal/services/mirror/domain"
)

// Counters are one worker's live counters; only that worker writes them
type Counters struct {
	worker    int
	total     int64
	processed atomic.Int64
	fetched   atomic.Int64
	missing   atomic.Int64
	skipped   atomic.Int64
}

// Progress holds the counters of every worker in a run
type Progress struct {
	started time.Time
	workers []*Counters
}

// NewProgress sizes counters from the partitions
func NewProgress(parts []domain.Partition) *Progress {
	p := &Progress{started: time.Now(), workers: make([]*Counters, len(parts))}
	for i, part := range parts {
		p.workers[i] = &Counters{worker: part.Worker, total: part.Range.Len()}
	}
	return p
}

// Worker returns the counters for worker i
func (p *Progress) Worker(i int) *Counters { return p.workers[i] }

// Snapshot copies the counters without blocking writers
func (p *Progress) Snapshot() []domain.WorkerProgress {
	if p == nil {
		return nil
	}
	out := make([]domain.WorkerProgress, len(p.workers))
	for i, c := range p.workers {
		out[i] = domain.WorkerProgress{
			Worker:    c.worker,
			Processed: c.processed.Load(),
			Total:     c.total,
			Fetched:   c.fetched.Load(),
			Missing:   c.missing.Load(),
			Skipped:   c.skipped.Load(),
		}
	}
	return out
}

// Totals sums processed and total across workers
func (p *Progress) Totals() (processed, total int64) {
	for _, w := range p.Snapshot() {
		processed += w.Processed
		total += w.Total
	}
	return processed, total
}

// Report logs aggregate progress every interval until ctx ends
func (p *Progress) Report(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			done, total := p.Totals()
			pct := 0.0
			if total > 0 {
				pct = float64(done) * 100 / float64(total)
			}
			rate := 0.0
			if el := time.Since(p.started).Seconds(); el > 0 {
				rate = float64(done) / el
			}
			logger.C(ctx).Info().
				Int64("processed", done).
				Int64("total", total).
				Float64("pct", pct).
				Float64("ids_per_s", rate).
				Msg("mirror: fetch progress")
		}
	}
}

// Board publishes the progress of the current run to readers such as the status server
type Board struct {
	cur atomic.Pointer[Progress]
}

// Set swaps in the progress of a new run
func (b *Board) Set(p *Progress) { b.cur.Store(p) }

// Snapshot implements domain.ProgressSource
func (b *Board) Snapshot() []domain.WorkerProgress { return b.cur.Load().Snapshot() }
