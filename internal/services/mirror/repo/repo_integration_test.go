//go:build integration_pg

package repo

import (
	"context"
	"testing"
	"time"

	"feedmirror/internal/platform/store"
	"feedmirror/internal/platform/testkit/containers"
	"feedmirror/internal/services/mirror/domain"

	"github.com/google/uuid"
)

func TestLedger_Integration_RoundTrip(t *testing.T) {
	dsn := containers.Postgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st, err := store.Open(ctx, store.Config{PG: store.PGConfig{Enabled: true, URL: dsn, MaxConns: 2, ConnectRetries: 6}})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	if err := Migrate(ctx, st.PG); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// twice is fine
	if err := Migrate(ctx, st.PG); err != nil {
		t.Fatalf("Migrate again: %v", err)
	}

	l := NewLedger(st.PG, NewPG())
	runID := uuid.NewString()
	if err := l.StartRun(ctx, domain.RunStart{RunID: runID, StartedAt: time.Now(), Workers: 2}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	fin := domain.RunFinish{
		Status: domain.RunStatusOK, Stage: domain.StageDone,
		Range:   domain.FetchRange{Low: 101, High: 105},
		Fetched: 4, Missing: 0, Skipped: 1, Staged: 4, Upserted: 4,
		FinishedAt: time.Now(),
	}
	skips := []domain.SkippedItem{{ID: 103, Reason: "status 500"}}
	if err := l.FinishRun(ctx, runID, fin, skips); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	// replaying the skip set does not duplicate
	if err := l.FinishRun(ctx, runID, fin, skips); err != nil {
		t.Fatalf("FinishRun replay: %v", err)
	}

	var (
		status    string
		low, high int64
		artifact  *string
		nSkips    int64
	)
	if err := st.PG.QueryRow(ctx,
		`SELECT status, low, high, artifact FROM mirror_runs WHERE run_id = $1`, runID,
	).Scan(&status, &low, &high, &artifact); err != nil {
		t.Fatalf("select run: %v", err)
	}
	if status != domain.RunStatusOK || low != 101 || high != 105 || artifact != nil {
		t.Fatalf("run row = %s %d %d %v", status, low, high, artifact)
	}
	if err := st.PG.QueryRow(ctx, `SELECT count(*) FROM mirror_skips WHERE run_id = $1`, runID).Scan(&nSkips); err != nil {
		t.Fatalf("select skips: %v", err)
	}
	if nSkips != 1 {
		t.Fatalf("skips = %d", nSkips)
	}
}
