package repokit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"feedmirror/internal/platform/store"
	"feedmirror/internal/platform/testkit"
)

// db logs every statement; Tx hands itself to fn
type db struct {
	log   []string
	txs   int
	txErr error
}

func (d *db) Exec(_ context.Context, sql string, _ ...any) (store.CommandTag, error) {
	d.log = append(d.log, "exec:"+sql)
	return nil, nil
}

func (d *db) Query(_ context.Context, sql string, _ ...any) (store.Rows, error) {
	d.log = append(d.log, "query:"+sql)
	return nil, nil
}

func (d *db) QueryRow(_ context.Context, sql string, _ ...any) store.Row {
	d.log = append(d.log, "row:"+sql)
	return nil
}

func (d *db) Tx(_ context.Context, fn func(q Queryer) error) error {
	d.txs++
	if d.txErr != nil {
		return d.txErr
	}
	return fn(d)
}

type named struct{ q Queryer }

func TestMustBind(t *testing.T) {
	d := &db{}
	b := BindFunc[named](func(q Queryer) named { return named{q: q} })
	if got := MustBind[named](b, d); got.q != d {
		t.Fatalf("queryer not passed through")
	}
	testkit.MustPanic(t, func() { MustBind[named](b, nil) })
	testkit.MustPanic(t, func() { MustBind[named](nil, d) })
}

func TestWithTx(t *testing.T) {
	d := &db{}
	boom := errors.New("boom")
	if err := WithTx(context.Background(), d, func(q Queryer) error {
		_, _ = q.Exec(context.Background(), "UPDATE x")
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("fn error lost: %v", err)
	}
	if d.txs != 1 || len(d.log) != 1 {
		t.Fatalf("txs=%d log=%v", d.txs, d.log)
	}

	d.txErr = errors.New("begin")
	called := false
	if err := WithTx(context.Background(), d, func(Queryer) error { called = true; return nil }); err != d.txErr || called {
		t.Fatalf("begin error should skip fn: err=%v called=%v", err, called)
	}
}

func exec(sql string) BeginHook {
	return func(ctx context.Context, q Queryer) error {
		_, err := q.Exec(ctx, sql)
		return err
	}
}

func TestWithBeginHooks(t *testing.T) {
	d := &db{}
	h := WithBeginHooks(d, exec("SET a"), exec("SET b"))
	if err := h.Tx(context.Background(), func(q Queryer) error {
		_, err := q.Exec(context.Background(), "INSERT")
		return err
	}); err != nil {
		t.Fatalf("Tx: %v", err)
	}
	if got := strings.Join(d.log, ","); got != "exec:SET a,exec:SET b,exec:INSERT" {
		t.Fatalf("order = %s", got)
	}

	// outside a tx nothing is hooked
	d.log = nil
	_, _ = h.Exec(context.Background(), "DELETE")
	_, _ = h.Query(context.Background(), "SELECT 1")
	h.QueryRow(context.Background(), "SELECT 2")
	if got := strings.Join(d.log, ","); got != "exec:DELETE,query:SELECT 1,row:SELECT 2" {
		t.Fatalf("passthrough = %s", got)
	}
}

func TestWithBeginHooks_ErrorStopsFn(t *testing.T) {
	d := &db{}
	boom := errors.New("hook")
	ran := false
	h := WithBeginHooks(d, func(context.Context, Queryer) error { return boom }, exec("SET never"))
	err := h.Tx(context.Background(), func(Queryer) error { ran = true; return nil })
	if !errors.Is(err, boom) || ran || len(d.log) != 0 {
		t.Fatalf("err=%v ran=%v log=%v", err, ran, d.log)
	}
}

func TestWithBeginHooks_NoneIsIdentity(t *testing.T) {
	d := &db{}
	if WithBeginHooks(d) != TxRunner(d) {
		t.Fatalf("no hooks should return db unchanged")
	}
}
