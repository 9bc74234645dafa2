package pg

import (
	"context"
	"errors"
	"testing"

	"feedmirror/internal/platform/testkit"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dsn = "postgres://u:p@h:5432/db?sslmode=disable"

func TestOpen_ParseError(t *testing.T) {
	if _, err := Open(context.Background(), Config{URL: "://bad"}, nil, nil); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestOpen_NewPoolError(t *testing.T) {
	testkit.Serial(t)
	testkit.Swap(t, &newPool, func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) {
		return nil, errors.New("boom")
	})
	if _, err := Open(context.Background(), Config{URL: dsn}, nil, nil); err == nil {
		t.Fatalf("expected pool error")
	}
}

func TestOpen_AppliesConfigThenMutator(t *testing.T) {
	testkit.Serial(t)

	var seen *pgxpool.Config
	testkit.Swap(t, &newPool, func(_ context.Context, pc *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = pc
		return &pgxpool.Pool{}, nil
	})

	cfg := Config{URL: dsn, MaxConns: 4, SlowMs: 500, AppName: "feedmirror"}
	p, err := Open(context.Background(), cfg, nil, func(pc *pgxpool.Config) {
		if pc.MaxConns != 4 {
			t.Fatalf("MaxConns not applied before mutator: %d", pc.MaxConns)
		}
		pc.MinConns = 1
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if seen.ConnConfig.RuntimeParams["application_name"] != "feedmirror" || seen.MinConns != 1 {
		t.Fatalf("pool config not applied: %+v", seen.ConnConfig.RuntimeParams)
	}
	if p.SlowMs != 500 || p.Pool == nil {
		t.Fatalf("unexpected PG: %+v", p)
	}
}

func TestClose_NilSafe(t *testing.T) {
	var p *PG
	p.Close()
	(&PG{}).Close()
}
