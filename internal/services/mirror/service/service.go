// Package service provides the mirror run coordinator
package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	perr "feedmirror/internal/platform/errors"
	"feedmirror/internal/platform/logger"
	"feedmirror/internal/services/mirror/domain"
	"feedmirror/internal/services/mirror/fetch"
	"feedmirror/internal/services/mirror/guardrails"
	"feedmirror/internal/services/mirror/partition"
	"feedmirror/internal/services/mirror/segment"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config holds the coordinator knobs
type Config struct {
	// Concurrency & pacing
	Workers   int     // <=0 -> 1
	RateLimit float64 // global requests/second; <=0 -> unlimited
	RateMode  string  // fetch.RateModeWorker | fetch.RateModeShared

	// Per item retry
	FetchAttempts int
	RetryBase     time.Duration

	DataDir       string
	ProgressEvery time.Duration
	Timeouts      guardrails.Timeouts
}

// Service runs resolve, partition, fetch, merge and load under one lease
type Service struct {
	Resolver domain.RangeResolver
	Feed     domain.FeedClient
	Loader   domain.ArtifactLoader
	Ledger   domain.Ledger
	Lease    domain.LeaseFunc
	Cfg      Config

	// Optional observability
	Board        *fetch.Board
	FetchMetrics *fetch.Metrics
	Metrics      *Metrics

	now func() time.Time
	pid int
}

// New constructs the coordinator; ledger and lease may be nil
func New(
	resolver domain.RangeResolver,
	feed domain.FeedClient,
	loader domain.ArtifactLoader,
	ledger domain.Ledger,
	lease domain.LeaseFunc,
	cfg Config,
) *Service {
	if resolver == nil || feed == nil || loader == nil {
		panic("mirror.Service requires a resolver, a feed and a loader")
	}
	if ledger == nil {
		ledger = nopLedger{}
	}
	if lease == nil {
		lease = guardrails.NoLease
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	return &Service{
		Resolver: resolver, Feed: feed, Loader: loader,
		Ledger: ledger, Lease: lease, Cfg: cfg,
		now: time.Now, pid: os.Getpid(),
	}
}

// Run implements domain.RunnerPort
func (s *Service) Run(ctx context.Context) (domain.Summary, error) {
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID)

	host, _ := os.Hostname()
	owner := fmt.Sprintf("%s:%d:%s", host, s.pid, runID)

	var sum domain.Summary
	err := s.Lease(ctx, owner, func(ctx context.Context) error {
		var err error
		sum, err = s.run(ctx, runID)
		return err
	})
	return sum, err
}

func (s *Service) run(ctx context.Context, runID string) (sum domain.Summary, retErr error) {
	ctx, cancel := guardrails.WithRun(ctx, s.Cfg.Timeouts)
	defer cancel()

	start := s.now()
	sum = domain.Summary{RunID: runID, Workers: s.Cfg.Workers}
	stage := domain.StageResolve
	log := logger.C(ctx)

	if err := s.Ledger.StartRun(ctx, domain.RunStart{RunID: runID, StartedAt: start, Workers: s.Cfg.Workers}); err != nil {
		return sum, err
	}
	log.Info().Int("workers", s.Cfg.Workers).Float64("rate_limit", s.Cfg.RateLimit).Str("rate_mode", s.Cfg.RateMode).Msg("mirror: run started")

	// ledger finish always runs, on a context that outlives cancellation
	defer func() {
		sum.Elapsed = s.now().Sub(start)
		s.finish(ctx, stage, sum, retErr)
	}()

	if _, err := segment.Cleanup(s.Cfg.DataDir); err != nil {
		return sum, perr.Wrap(err, perr.ErrorCodeUnknown, "prepare data dir")
	}

	rctx, rcancel := guardrails.ForResolve(logger.WithStage(ctx, stage), s.Cfg.Timeouts)
	rng, err := s.Resolver.Resolve(rctx)
	rcancel()
	if err != nil {
		return sum, err
	}
	sum.Range = rng
	if s.Metrics != nil {
		s.Metrics.RangeLow.Set(float64(rng.Low))
		s.Metrics.RangeHigh.Set(float64(rng.High))
	}

	stage = domain.StagePartition
	parts, err := partition.Split(rng, s.Cfg.Workers)
	if err != nil {
		return sum, err
	}

	stage = domain.StageFetch
	segs, reports, err := s.fetchAll(logger.WithStage(ctx, stage), parts)
	for _, r := range reports {
		sum.Fetched += r.Fetched
		sum.Missing += r.Missing
		sum.Skipped = append(sum.Skipped, r.Skipped...)
	}
	sort.Slice(sum.Skipped, func(i, j int) bool { return sum.Skipped[i].ID < sum.Skipped[j].ID })
	if err != nil {
		return sum, err
	}

	stage = domain.StageMerge
	art, err := segment.Merger{DataDir: s.Cfg.DataDir}.Merge(logger.WithStage(ctx, stage), segs, start)
	if err != nil {
		return sum, err
	}
	sum.Artifact = art

	stage = domain.StageLoad
	lctx, lcancel := guardrails.ForLoad(logger.WithStage(ctx, stage), s.Cfg.Timeouts)
	ls, err := s.Loader.Load(lctx, art.Path)
	lcancel()
	if err != nil {
		return sum, err
	}
	sum.Load = ls

	stage = domain.StageDone
	return sum, nil
}

// fetchAll runs one worker per partition and returns segments in completion order.
// The first fatal worker error cancels the rest
func (s *Service) fetchAll(ctx context.Context, parts []domain.Partition) ([]domain.Segment, []domain.Report, error) {
	prog := fetch.NewProgress(parts)
	if s.Board != nil {
		s.Board.Set(prog)
	}
	if s.FetchMetrics != nil {
		s.FetchMetrics.Processed.Reset()
	}

	reportCtx, stopReport := context.WithCancel(ctx)
	defer stopReport()
	go prog.Report(reportCtx, s.Cfg.ProgressEvery)

	pacers := fetch.NewPacers(s.Cfg.RateLimit, len(parts), s.Cfg.RateMode)
	reports := make([]domain.Report, len(parts))
	segs := make([]domain.Segment, 0, len(parts))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range parts {
		w := &fetch.Worker{
			Feed:     s.Feed,
			Pacer:    pacers[i],
			Open:     s.openSink,
			Counters: prog.Worker(i),
			Metrics:  s.FetchMetrics,
			Cfg:      fetch.Config{Attempts: s.Cfg.FetchAttempts, RetryBase: s.Cfg.RetryBase},
		}
		g.Go(func() error {
			seg, rep, err := w.Run(gctx, p)
			reports[i] = rep
			if err != nil {
				return err
			}
			mu.Lock()
			segs = append(segs, seg)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, reports, err
	}
	return segs, reports, nil
}

func (s *Service) openSink(worker int) (fetch.Sink, error) {
	sink, err := segment.Create(s.Cfg.DataDir, s.pid, worker)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *Service) finish(ctx context.Context, stage string, sum domain.Summary, runErr error) {
	status := domain.RunStatusOK
	errText := ""
	if runErr != nil {
		status = domain.RunStatusError
		errText = runErr.Error()
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err := s.Ledger.FinishRun(fctx, sum.RunID, domain.RunFinish{
		Status:     status,
		Stage:      stage,
		Range:      sum.Range,
		Fetched:    sum.Fetched,
		Missing:    sum.Missing,
		Skipped:    len(sum.Skipped),
		Staged:     sum.Load.Staged,
		Upserted:   sum.Load.Upserted,
		Tombstones: sum.Load.Tombstones,
		Artifact:   sum.Artifact.Path,
		ErrText:    errText,
		FinishedAt: s.now(),
	}, sum.Skipped)
	log := logger.C(ctx)
	if err != nil {
		log.Error().Err(err).Msg("mirror: ledger finish failed")
	}

	if s.Metrics != nil {
		s.Metrics.Runs.WithLabelValues(status).Inc()
		s.Metrics.RunSeconds.Observe(sum.Elapsed.Seconds())
		if runErr == nil {
			s.Metrics.Upserted.Add(float64(sum.Load.Upserted))
			s.Metrics.Tombstones.Add(float64(sum.Load.Tombstones))
			s.Metrics.LastSuccess.Set(float64(s.now().Unix()))
		}
	}

	ev := log.Info()
	if runErr != nil {
		ev = log.Error().Err(runErr).Uint16("code", uint16(perr.CodeOf(runErr)))
	}
	ev.Str("status", status).
		Str("stage", stage).
		Int64("low", sum.Range.Low).
		Int64("high", sum.Range.High).
		Int64("fetched", sum.Fetched).
		Int64("missing", sum.Missing).
		Int("skipped", len(sum.Skipped)).
		Uint64("upserted", sum.Load.Upserted).
		Uint64("tombstones", sum.Load.Tombstones).
		Str("artifact", sum.Artifact.Path).
		Dur("elapsed", sum.Elapsed).
		Msg("mirror: run finished")
}

type nopLedger struct{}

func (nopLedger) StartRun(context.Context, domain.RunStart) error { return nil }
func (nopLedger) FinishRun(context.Context, string, domain.RunFinish, []domain.SkippedItem) error {
	return nil
}
