// Package module wires the mirror service from shared deps
package module

import (
	"context"

	"feedmirror/internal/adapters/feed/hackernews"
	"feedmirror/internal/adapters/warehouse/clickhouse"
	"feedmirror/internal/modkit"
	"feedmirror/internal/modkit/repokit"
	perr "feedmirror/internal/platform/errors"
	phttp "feedmirror/internal/platform/net/http"
	"feedmirror/internal/services/mirror/domain"
	"feedmirror/internal/services/mirror/fetch"
	"feedmirror/internal/services/mirror/guardrails"
	"feedmirror/internal/services/mirror/load"
	"feedmirror/internal/services/mirror/repo"
	"feedmirror/internal/services/mirror/service"
	"feedmirror/internal/services/mirror/watermark"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Ports defines the mirror module ports
type Ports struct {
	Runner   domain.RunnerPort
	Progress domain.ProgressSource
	Metrics  prometheus.Gatherer
}

// Module implements the mirror module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// seams for tests
var (
	newFeed      = func(o hackernews.Options) domain.FeedClient { return hackernews.NewClient(o) }
	newWarehouse = func(deps modkit.Deps) (domain.Warehouse, error) {
		return clickhouse.New(deps.CH, deps.Landing)
	}
)

// New constructs the mirror module from deps.Cfg.
// Without postgres the run has no ledger and no lease
func New(ctx context.Context, deps modkit.Deps) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	return NewWithOptions(ctx, deps, opts)
}

// NewWithOptions is New with explicit options
func NewWithOptions(ctx context.Context, deps modkit.Deps, opts Options) (*Module, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := deps.Log

	wh, err := newWarehouse(deps)
	if err != nil {
		return nil, err
	}
	loader, err := load.New(wh, load.Options{
		Database:    opts.Database,
		Table:       opts.Table,
		RawTable:    opts.RawTable,
		StagePrefix: opts.StagePrefix,
	})
	if err != nil {
		return nil, err
	}
	if opts.EnsureSchema {
		if err := loader.EnsureSchema(ctx); err != nil {
			return nil, err
		}
	}

	feed := newFeed(hackernews.Options{
		BaseURL: opts.FeedBaseURL,
		Timeout: opts.FeedTimeout,
	})
	resolver := watermark.New(
		watermark.WarehouseMarks{WH: wh, Table: load.Options{Database: opts.Database, Table: opts.Table}.Canonical()},
		feed,
		watermark.Options{Window: opts.Window, MaxBatchIDs: opts.MaxBatchIDs},
	)

	var (
		ledger domain.Ledger = repo.Nop{}
		lease  domain.LeaseFunc
	)
	if deps.PG != nil {
		if err := repo.Migrate(ctx, deps.PG); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeDB, "migrate mirror ledger")
		}
		pg := repokit.WithBeginHooks(deps.PG, repo.StatementTimeout(opts.LedgerStmtTimeout))
		ledger = repo.NewLedger(pg, repo.NewPG())
		lease = guardrails.MakeLease(pg, opts.LeaseTTL)
	} else {
		log.Warn().Msg("mirror: no postgres configured; running without ledger or lease")
		lease = guardrails.NoLease
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := service.New(resolver, feed, loader, ledger, lease, service.Config{
		Workers:       opts.Workers,
		RateLimit:     opts.RateLimit,
		RateMode:      opts.RateMode,
		FetchAttempts: opts.FetchRetries,
		RetryBase:     opts.RetryBase,
		DataDir:       opts.DataDir,
		ProgressEvery: opts.ProgressEvery,
		Timeouts: guardrails.Timeouts{
			Run:     opts.RunTimeout,
			Resolve: opts.ResolveTimeout,
			Load:    opts.LoadTimeout,
		},
	})
	svc.Board = &fetch.Board{}
	svc.FetchMetrics = fetch.NewMetrics(reg)
	svc.Metrics = service.NewMetrics(reg)

	log.Info().
		Int("workers", opts.Workers).
		Float64("rate_limit", opts.RateLimit).
		Str("rate_mode", opts.RateMode).
		Dur("window", opts.Window).
		Int64("max_batch_ids", opts.MaxBatchIDs).
		Str("table", opts.Database+"."+opts.Table).
		Msg("mirror: module ready")

	m := &Module{deps: deps, opts: opts}
	m.ports = Ports{Runner: svc, Progress: svc.Board, Metrics: reg}
	return m, nil
}

// Name returns the module name
func (m *Module) Name() string { return "mirror" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// MountRoutes is a no-op; the status module serves the mirror's ports
func (m *Module) MountRoutes(phttp.Router) {}

// Prefix returns the module prefix (none)
func (m *Module) Prefix() string { return "" }
