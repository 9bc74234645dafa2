// Package fetch drains one partition per worker from the feed into a segment file
package fetch

import (
	"context"
	"errors"
	"strconv"
	"time"

	perr "feedmirror/internal/platform/errors"
	"feedmirror/internal/platform/logger"
	"feedmirror/internal/services/mirror/domain"

	"github.com/cenkalti/backoff/v4"
)

// Sink is an append-only line sink owned by one worker
type Sink interface {
	Append(line []byte) error
	Close() (domain.Segment, error)
}

// SinkOpener creates the sink for a worker index
type SinkOpener func(worker int) (Sink, error)

// Config tunes per item retries
type Config struct {
	// Attempts per id including the first; <=0 -> 1
	Attempts  int
	RetryBase time.Duration
}

// Worker fetches one partition in ascending id order
type Worker struct {
	Feed     domain.FeedClient
	Pacer    Pacer
	Open     SinkOpener
	Counters *Counters
	Metrics  *Metrics
	Cfg      Config
}

// Run drains part into a segment. Per-id failures are skipped and reported;
// sink failures and cancellation abort the worker
func (w *Worker) Run(ctx context.Context, part domain.Partition) (domain.Segment, domain.Report, error) {
	start := time.Now()
	rep := domain.Report{Worker: part.Worker}
	log := logger.C(ctx).With().Int("worker", part.Worker).Logger()

	sink, err := w.Open(part.Worker)
	if err != nil {
		return domain.Segment{}, rep, perr.Wrapf(err, perr.ErrorCodeFetch, "worker %d: open segment", part.Worker)
	}

	for id := part.Range.Low; id <= part.Range.High; id++ {
		if err := ctx.Err(); err != nil {
			_, _ = sink.Close()
			return domain.Segment{}, rep, err
		}

		line, err := w.fetchOne(ctx, id)
		switch {
		case err != nil && ctx.Err() != nil:
			_, _ = sink.Close()
			return domain.Segment{}, rep, ctx.Err()
		case err != nil:
			rep.Skipped = append(rep.Skipped, domain.SkippedItem{ID: id, Reason: err.Error()})
			w.count(OutcomeSkipped)
			log.Warn().Int64("id", id).Err(err).Msg("mirror: item skipped")
		case line == nil:
			rep.Missing++
			w.count(OutcomeMissing)
		default:
			if err := sink.Append(line); err != nil {
				_, _ = sink.Close()
				return domain.Segment{}, rep, perr.Wrapf(err, perr.ErrorCodeFetch, "worker %d: append item %d", part.Worker, id)
			}
			rep.Fetched++
			w.count(OutcomeFetched)
		}
		w.processed(part.Worker)
	}

	seg, err := sink.Close()
	if err != nil {
		return domain.Segment{}, rep, perr.Wrapf(err, perr.ErrorCodeFetch, "worker %d: close segment", part.Worker)
	}
	rep.Elapsed = time.Since(start)
	log.Debug().
		Int64("low", part.Range.Low).
		Int64("high", part.Range.High).
		Int64("fetched", rep.Fetched).
		Int64("missing", rep.Missing).
		Int("skipped", len(rep.Skipped)).
		Dur("elapsed", rep.Elapsed).
		Msg("mirror: worker done")
	return seg, rep, nil
}

// fetchOne returns the normalized line for id, nil for a missing item,
// or the last error once retries are spent. Every attempt waits on the pacer
func (w *Worker) fetchOne(ctx context.Context, id int64) ([]byte, error) {
	var line []byte
	attempt := 0
	op := func() error {
		if err := w.Pacer.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		if attempt > 0 {
			w.count(OutcomeRetried)
		}
		attempt++

		t0 := time.Now()
		body, err := w.Feed.Item(ctx, id)
		if w.Metrics != nil {
			w.Metrics.Latency.Observe(time.Since(t0).Seconds())
		}
		if err != nil {
			if ctx.Err() != nil || !perr.Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if body == nil {
			line = nil
			return nil
		}
		l, err := Normalize(id, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		line = l
		return nil
	}

	err := backoff.Retry(op, w.retryPolicy(ctx))
	if err != nil {
		var pe *backoff.PermanentError
		if errors.As(err, &pe) {
			err = pe.Err
		}
		return nil, err
	}
	return line, nil
}

func (w *Worker) retryPolicy(ctx context.Context) backoff.BackOff {
	attempts := w.Cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	base := w.Cfg.RetryBase
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = base
	eb.MaxInterval = 10 * time.Second
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)
}

func (w *Worker) count(outcome string) {
	if w.Counters != nil {
		switch outcome {
		case OutcomeFetched:
			w.Counters.fetched.Add(1)
		case OutcomeMissing:
			w.Counters.missing.Add(1)
		case OutcomeSkipped:
			w.Counters.skipped.Add(1)
		}
	}
	if w.Metrics != nil {
		w.Metrics.Items.WithLabelValues(outcome).Inc()
	}
}

func (w *Worker) processed(worker int) {
	if w.Counters == nil {
		return
	}
	n := w.Counters.processed.Add(1)
	if w.Metrics != nil {
		w.Metrics.Processed.WithLabelValues(strconv.Itoa(worker)).Set(float64(n))
	}
}
