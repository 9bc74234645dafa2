package repo

import (
	"context"
	"fmt"
	"time"

	"feedmirror/internal/modkit/repokit"
	"feedmirror/internal/services/mirror/domain"
)

// Ledger runs the ledger repo inside transactions
type Ledger struct {
	db     repokit.TxRunner
	binder repokit.Binder[domain.LedgerRepo]
}

// NewLedger returns the transactional ledger over db
func NewLedger(db repokit.TxRunner, binder repokit.Binder[domain.LedgerRepo]) *Ledger {
	if db == nil || binder == nil {
		panic("repo.Ledger requires a TxRunner and a binder")
	}
	return &Ledger{db: db, binder: binder}
}

// StartRun implements domain.Ledger
func (l *Ledger) StartRun(ctx context.Context, rs domain.RunStart) error {
	return repokit.WithTx(ctx, l.db, func(q repokit.Queryer) error {
		return repokit.MustBind(l.binder, q).StartRun(ctx, rs)
	})
}

// FinishRun records the outcome and the skipped ids atomically
func (l *Ledger) FinishRun(ctx context.Context, runID string, fin domain.RunFinish, skips []domain.SkippedItem) error {
	return repokit.WithTx(ctx, l.db, func(q repokit.Queryer) error {
		r := repokit.MustBind(l.binder, q)
		if err := r.FinishRun(ctx, runID, fin); err != nil {
			return err
		}
		return r.RecordSkips(ctx, runID, skips)
	})
}

// StatementTimeout is a begin hook bounding every statement in a ledger tx; 0 disables
func StatementTimeout(d time.Duration) repokit.BeginHook {
	return func(ctx context.Context, q repokit.Queryer) error {
		if d <= 0 {
			return nil
		}
		_, err := q.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", d.Milliseconds()))
		return err
	}
}

// Nop is the ledger used when no Postgres is configured
type Nop struct{}

// StartRun implements domain.Ledger
func (Nop) StartRun(context.Context, domain.RunStart) error { return nil }

// FinishRun implements domain.Ledger
func (Nop) FinishRun(context.Context, string, domain.RunFinish, []domain.SkippedItem) error {
	return nil
}
