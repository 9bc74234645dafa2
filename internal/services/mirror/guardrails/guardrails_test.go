package guardrails

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"feedmirror/internal/platform/store"
	"feedmirror/internal/platform/testkit"
	"feedmirror/internal/services/mirror/domain"
)

type oneRow struct {
	n   int
	err error
}

func (r *oneRow) Next() bool        { r.n--; return r.n >= 0 }
func (r *oneRow) Scan(...any) error { return nil }
func (r *oneRow) Err() error        { return r.err }
func (r *oneRow) Close()            {}
func (r *oneRow) Columns() []string { return []string{"owner"} }

type tag struct{}

func (tag) String() string      { return "DELETE 1" }
func (tag) RowsAffected() int64 { return 1 }

// leaseDB grants the claim when free is true
type leaseDB struct {
	free     bool
	queryErr error
	sqls     []string
	released bool
	relErr   error // ctx.Err() when the DELETE ran
}

func (d *leaseDB) Exec(ctx context.Context, sql string, _ ...any) (store.CommandTag, error) {
	d.sqls = append(d.sqls, sql)
	if strings.HasPrefix(sql, "DELETE FROM mirror_leases") {
		d.released = true
		d.relErr = ctx.Err()
	}
	return tag{}, nil
}

func (d *leaseDB) Query(_ context.Context, sql string, _ ...any) (store.Rows, error) {
	d.sqls = append(d.sqls, sql)
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	if d.free {
		return &oneRow{n: 1}, nil
	}
	return &oneRow{}, nil
}

func (d *leaseDB) QueryRow(context.Context, string, ...any) store.Row { return nil }

func (d *leaseDB) Tx(_ context.Context, fn func(store.RowQuerier) error) error { return fn(d) }

func TestLease_ClaimRunRelease(t *testing.T) {
	db := &leaseDB{free: true}
	ran := false
	err := MakeLease(db, time.Hour)(context.Background(), "host:1", func(context.Context) error {
		ran = true
		if db.released {
			t.Fatalf("released before work finished")
		}
		return nil
	})
	if err != nil || !ran || !db.released {
		t.Fatalf("err=%v ran=%v released=%v", err, ran, db.released)
	}
}

func TestLease_HeldSkipsWork(t *testing.T) {
	db := &leaseDB{free: false}
	err := MakeLease(db, time.Hour)(context.Background(), "host:2", func(context.Context) error {
		t.Fatalf("work ran without the lease")
		return nil
	})
	if !errors.Is(err, domain.ErrLeaseHeld) {
		t.Fatalf("err = %v", err)
	}
	if db.released {
		t.Fatalf("released a lease it never held")
	}
}

func TestLease_ClaimErrorAndWorkError(t *testing.T) {
	db := &leaseDB{queryErr: errors.New("conn refused")}
	if err := MakeLease(db, time.Hour)(context.Background(), "o", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected claim error")
	}

	db = &leaseDB{free: true}
	want := errors.New("load failed")
	if err := MakeLease(db, time.Hour)(context.Background(), "o", func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
	if !db.released {
		t.Fatalf("lease kept after failed work")
	}
}

func TestLease_ReleaseSurvivesCancellation(t *testing.T) {
	db := &leaseDB{free: true}
	ctx, cancel := context.WithCancel(context.Background())
	_ = MakeLease(db, time.Hour)(ctx, "o", func(context.Context) error {
		cancel()
		return context.Canceled
	})
	if !db.released || db.relErr != nil {
		t.Fatalf("release should run on a live context, released=%v err=%v", db.released, db.relErr)
	}
}

func TestClaimSQL(t *testing.T) {
	sql, args, err := ClaimSQL("me", 90*time.Minute).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	testkit.MustContain(t, sql, "INSERT INTO mirror_leases (name,owner,claimed_at,expires_at) VALUES ($1,$2,now(),now() + make_interval(secs => $3))")
	testkit.MustContain(t, sql, "WHERE mirror_leases.expires_at <= now()")
	testkit.MustContain(t, sql, "RETURNING owner")
	if len(args) != 3 || args[0] != LeaseName || args[1] != "me" || args[2] != 5400.0 {
		t.Fatalf("args = %v", args)
	}
}

func TestNoLease(t *testing.T) {
	called := false
	if err := NoLease(context.Background(), "x", func(context.Context) error { called = true; return nil }); err != nil || !called {
		t.Fatalf("NoLease: %v %v", err, called)
	}
}

func TestTimeouts_NeverExtendParent(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ctx, c2 := ForLoad(parent, Timeouts{Load: time.Hour})
	defer c2()
	if Remaining(ctx) > 50*time.Millisecond {
		t.Fatalf("child outlives parent: %v", Remaining(ctx))
	}

	ctx, c3 := ForResolve(context.Background(), Timeouts{Resolve: 20 * time.Millisecond})
	defer c3()
	if rem := Remaining(ctx); rem <= 0 || rem > 20*time.Millisecond {
		t.Fatalf("remaining = %v", rem)
	}

	ctx, c4 := WithRun(context.Background(), Timeouts{})
	if _, ok := ctx.Deadline(); ok {
		t.Fatalf("zero budget should not set a deadline")
	}
	c4()
	if ctx.Err() == nil {
		t.Fatalf("child should still be cancelable")
	}
	if Remaining(context.Background()) != 0 {
		t.Fatalf("no deadline -> 0")
	}
}
