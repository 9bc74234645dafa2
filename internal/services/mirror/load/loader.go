// Package load stages a batch artifact in the warehouse and merges it into the canonical table
package load

import (
	"context"
	"os"
	"regexp"
	"time"

	perr "feedmirror/internal/platform/errors"
	"feedmirror/internal/platform/logger"
	"feedmirror/internal/services/mirror/domain"
)

// Options names the warehouse objects
type Options struct {
	Database    string
	Table       string
	RawTable    string
	StagePrefix string
}

// Canonical returns the qualified canonical table name
func (o Options) Canonical() string { return o.Database + "." + o.Table }

// Raw returns the qualified staging table name
func (o Options) Raw() string { return o.Database + "." + o.RawTable }

var ident = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate rejects names that cannot be spliced into SQL unquoted
func (o Options) Validate() error {
	for field, v := range map[string]string{"database": o.Database, "table": o.Table, "raw_table": o.RawTable} {
		if !ident.MatchString(v) {
			return perr.WithField(perr.InvalidArgf("invalid %s name %q", field, v), field)
		}
	}
	if o.Table == o.RawTable {
		return perr.WithField(perr.InvalidArgf("table and raw_table must differ"), "raw_table")
	}
	if o.StagePrefix == "" {
		return perr.WithField(perr.InvalidArgf("stage prefix is required"), "stage_prefix")
	}
	return nil
}

// Loader runs the stage, bulk load and merge steps in order
type Loader struct {
	wh   domain.Warehouse
	opts Options
}

// New constructs a Loader
func New(wh domain.Warehouse, opts Options) (*Loader, error) {
	if wh == nil {
		return nil, perr.InvalidArgf("load: nil warehouse")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Loader{wh: wh, opts: opts}, nil
}

// EnsureSchema creates the database and both tables when absent
func (l *Loader) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{
		CreateDatabaseSQL(l.opts.Database),
		CreateRawSQL(l.opts.Raw()),
		CreateCanonicalSQL(l.opts.Canonical()),
	} {
		if err := l.wh.Execute(ctx, q); err != nil {
			return perr.Wrap(err, perr.ErrorCodeLoad, "load: ensure schema")
		}
	}
	return nil
}

type step struct {
	name string
	run  func(context.Context) error
}

// Load merges the artifact at path into the canonical table.
// An empty artifact makes no warehouse calls. The first failing step aborts the rest
func (l *Loader) Load(ctx context.Context, artifactPath string) (domain.LoadSummary, error) {
	start := time.Now()
	var sum domain.LoadSummary

	fi, err := os.Stat(artifactPath)
	if err != nil {
		return sum, perr.Wrapf(err, perr.ErrorCodeLoad, "load: artifact %s", artifactPath)
	}
	if fi.Size() == 0 {
		logger.C(ctx).Info().Str("artifact", artifactPath).Msg("mirror: empty artifact, nothing to load")
		return sum, nil
	}

	table, raw, prefix := l.opts.Canonical(), l.opts.Raw(), l.opts.StagePrefix
	steps := []step{
		{"clear stage", func(ctx context.Context) error { return l.wh.RemoveStagedFiles(ctx, prefix) }},
		{"upload", func(ctx context.Context) error { return l.wh.UploadFile(ctx, artifactPath, prefix) }},
		{"truncate raw", func(ctx context.Context) error { return l.wh.Execute(ctx, TruncateSQL(raw)) }},
		{"bulk load", func(ctx context.Context) error {
			return l.wh.Execute(ctx, BulkLoadSQL(raw, l.wh.StageSource(prefix)))
		}},
		{"count", func(ctx context.Context) error {
			return l.wh.FetchOne(ctx, CountsSQL(table, raw), &sum.Staged, &sum.Tombstones, &sum.Upserted)
		}},
		{"delete staged ids", func(ctx context.Context) error { return l.wh.Execute(ctx, DeleteStagedSQL(table, raw)) }},
		{"insert live rows", func(ctx context.Context) error { return l.wh.Execute(ctx, InsertLiveSQL(table, raw)) }},
		{"clear stage", func(ctx context.Context) error { return l.wh.RemoveStagedFiles(ctx, prefix) }},
	}

	log := logger.C(ctx)
	for _, s := range steps {
		t0 := time.Now()
		if err := s.run(ctx); err != nil {
			return domain.LoadSummary{}, perr.WithOp(perr.Wrapf(err, perr.ErrorCodeLoad, "load: %s", s.name), s.name)
		}
		log.Debug().Str("step", s.name).Dur("elapsed", time.Since(t0)).Msg("mirror: load step")
	}

	sum.Elapsed = time.Since(start)
	log.Info().
		Str("artifact", artifactPath).
		Uint64("staged", sum.Staged).
		Uint64("upserted", sum.Upserted).
		Uint64("tombstones", sum.Tombstones).
		Dur("elapsed", sum.Elapsed).
		Msg("mirror: artifact merged")
	return sum, nil
}
