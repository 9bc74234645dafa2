// Package repo provides postgres access for the mirror run ledger
package repo

import (
	"context"

	"feedmirror/internal/modkit/repokit"
	perr "feedmirror/internal/platform/errors"
	"feedmirror/internal/platform/store"
	"feedmirror/internal/services/mirror/domain"

	sq "github.com/Masterminds/squirrel"
)

// skipChunk keeps a multi row insert well under the 65535 bind parameter limit
const skipChunk = 1000

type (
	// PG is a Postgres binder for domain.LedgerRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.LedgerRepo
func NewPG() repokit.Binder[domain.LedgerRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.LedgerRepo { return &queries{q: q} }

// StartRun inserts the run row in running state
func (r *queries) StartRun(ctx context.Context, rs domain.RunStart) error {
	_, err := store.ExecB(ctx, r.q, store.PSQL.
		Insert("mirror_runs").
		Columns("run_id", "started_at", "status", "stage", "workers").
		Values(rs.RunID, rs.StartedAt.UTC(), domain.RunStatusRunning, domain.StageResolve, rs.Workers))
	return perr.FromPostgres(err, "ledger: start run")
}

// FinishRun stamps the outcome on the run row
func (r *queries) FinishRun(ctx context.Context, runID string, fin domain.RunFinish) error {
	b := store.PSQL.Update("mirror_runs").
		SetMap(map[string]any{
			"finished_at": fin.FinishedAt.UTC(),
			"status":      fin.Status,
			"stage":       fin.Stage,
			"low":         fin.Range.Low,
			"high":        fin.Range.High,
			"fetched":     fin.Fetched,
			"missing":     fin.Missing,
			"skipped":     fin.Skipped,
			"staged":      int64(fin.Staged),
			"upserted":    int64(fin.Upserted),
			"tombstones":  int64(fin.Tombstones),
			"artifact":    sq.Expr("NULLIF(?, '')", fin.Artifact),
			"error":       sq.Expr("NULLIF(?, '')", fin.ErrText),
		}).
		Where(sq.Eq{"run_id": runID})
	tag, err := store.ExecB(ctx, r.q, b)
	if err != nil {
		return perr.FromPostgres(err, "ledger: finish run")
	}
	if tag.RowsAffected() == 0 {
		return perr.NotFoundf("ledger: run %s not found", runID)
	}
	return nil
}

// RecordSkips stores skipped ids; re-recording the same id is a no-op
func (r *queries) RecordSkips(ctx context.Context, runID string, skips []domain.SkippedItem) error {
	for start := 0; start < len(skips); start += skipChunk {
		end := min(start+skipChunk, len(skips))
		b := store.PSQL.Insert("mirror_skips").Columns("run_id", "item_id", "reason")
		for _, s := range skips[start:end] {
			b = b.Values(runID, s.ID, s.Reason)
		}
		b = b.Suffix("ON CONFLICT (run_id, item_id) DO NOTHING")
		if _, err := store.ExecB(ctx, r.q, b); err != nil {
			return perr.FromPostgres(err, "ledger: record skips")
		}
	}
	return nil
}
