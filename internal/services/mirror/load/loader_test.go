package load

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	perr "feedmirror/internal/platform/errors"
	"feedmirror/internal/platform/testkit"
	"feedmirror/internal/services/mirror/mirrortest"
)

var opts = Options{Database: "feedmirror", Table: "items", RawTable: "items_raw", StagePrefix: "stage/items"}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func artifact(t *testing.T, lines ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "items_2024-05-01.ndjson")
	body := ""
	for _, l := range lines {
		body += l + "\n"
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newLoader(t *testing.T, wh *mirrortest.Warehouse) *Loader {
	t.Helper()
	l, err := New(wh, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestOptions_Validate(t *testing.T) {
	if err := opts.Validate(); err != nil {
		t.Fatalf("valid opts: %v", err)
	}
	bad := []Options{
		{Database: "feed-mirror", Table: "items", RawTable: "raw", StagePrefix: "s"},
		{Database: "db", Table: "items; DROP", RawTable: "raw", StagePrefix: "s"},
		{Database: "db", Table: "items", RawTable: "items", StagePrefix: "s"},
		{Database: "db", Table: "items", RawTable: "raw"},
	}
	for _, o := range bad {
		if err := o.Validate(); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			t.Fatalf("%+v: err = %v", o, err)
		}
	}
	if _, err := New(nil, opts); err == nil {
		t.Fatalf("expected nil warehouse error")
	}
}

func TestEnsureSchema(t *testing.T) {
	wh := mirrortest.NewWarehouse()
	if err := newLoader(t, wh).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if len(wh.Calls) != 3 {
		t.Fatalf("calls = %v", wh.Calls)
	}
	testkit.MustContain(t, wh.Calls[0], "CREATE DATABASE IF NOT EXISTS feedmirror")
	testkit.MustContain(t, wh.Calls[1], "feedmirror.items_raw")
	testkit.MustContain(t, wh.Calls[2], "`by` String")
	testkit.MustContain(t, wh.Calls[2], "ORDER BY id")

	wh = mirrortest.NewWarehouse()
	wh.FailOn = "CREATE TABLE"
	if err := newLoader(t, wh).EnsureSchema(context.Background()); !perr.IsCode(err, perr.ErrorCodeLoad) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_StepOrder(t *testing.T) {
	wh := mirrortest.NewWarehouse()
	_, err := newLoader(t, wh).Load(context.Background(), artifact(t, mirrortest.Item(1, t0, "")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{
		"remove: stage/items",
		"upload: stage/items",
		"exec: TRUNCATE TABLE IF EXISTS feedmirror.items_raw",
		"exec: INSERT INTO feedmirror.items_raw (doc) SELECT json FROM s3(",
		"fetch: SELECT",
		"exec: ALTER TABLE feedmirror.items DELETE WHERE id IN (SELECT id FROM feedmirror.items_raw) SETTINGS mutations_sync = 1",
		"exec: INSERT INTO feedmirror.items (",
		"remove: stage/items",
	}
	if len(wh.Calls) != len(want) {
		t.Fatalf("calls = %v", wh.Calls)
	}
	for i, w := range want {
		if !strings.HasPrefix(wh.Calls[i], w) {
			t.Fatalf("call %d = %q, want prefix %q", i, wh.Calls[i], w)
		}
	}
	if len(wh.Staged()) != 0 {
		t.Fatalf("stage not cleared: %v", wh.Staged())
	}
}

func TestLoad_UpsertAndTombstones(t *testing.T) {
	wh := mirrortest.NewWarehouse()
	wh.Seed(
		mirrortest.Item(10, t0, `"title":"old"`),
		mirrortest.Item(11, t0, `"title":"doomed"`),
	)
	path := artifact(t,
		mirrortest.Item(10, t0, `"title":"new"`),
		`{"id":11,"deleted":true}`,
		`{"id":12,"deleted":true}`,
		mirrortest.Item(13, t0, `"title":"fresh"`),
	)

	sum, err := newLoader(t, wh).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sum.Staged != 4 || sum.Tombstones != 1 || sum.Upserted != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if got := wh.Rows(); len(got) != 2 || got[0] != 10 || got[1] != 13 {
		t.Fatalf("rows = %v", got)
	}
	doc, _ := wh.Doc(10)
	testkit.MustContain(t, doc, `"title":"new"`)
}

func TestLoad_Idempotent(t *testing.T) {
	wh := mirrortest.NewWarehouse()
	path := artifact(t, mirrortest.Item(1, t0, ""), mirrortest.Item(2, t0, ""))
	l := newLoader(t, wh)
	for i := 0; i < 2; i++ {
		if _, err := l.Load(context.Background(), path); err != nil {
			t.Fatalf("Load #%d: %v", i, err)
		}
	}
	if got := wh.Rows(); len(got) != 2 {
		t.Fatalf("rows after rerun = %v", got)
	}
}

func TestLoad_EmptyArtifactIsNoop(t *testing.T) {
	wh := mirrortest.NewWarehouse()
	sum, err := newLoader(t, wh).Load(context.Background(), artifact(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sum.Staged != 0 || len(wh.Calls) != 0 {
		t.Fatalf("sum=%+v calls=%v", sum, wh.Calls)
	}
}

func TestLoad_MissingArtifact(t *testing.T) {
	wh := mirrortest.NewWarehouse()
	_, err := newLoader(t, wh).Load(context.Background(), filepath.Join(t.TempDir(), "nope.ndjson"))
	if !perr.IsCode(err, perr.ErrorCodeLoad) || len(wh.Calls) != 0 {
		t.Fatalf("err=%v calls=%v", err, wh.Calls)
	}
}

func TestLoad_FailureSkipsLaterSteps(t *testing.T) {
	cases := map[string]string{
		"upload":    "upload:",
		"bulk load": "(doc) SELECT json",
		"count":     "fetch:",
		"delete":    "ALTER TABLE",
	}
	for name, failOn := range cases {
		t.Run(name, func(t *testing.T) {
			wh := mirrortest.NewWarehouse()
			wh.Seed(mirrortest.Item(1, t0, ""))
			wh.FailOn = failOn
			wh.Err = errors.New("boom")

			_, err := newLoader(t, wh).Load(context.Background(), artifact(t, `{"id":1,"deleted":true}`))
			if !perr.IsCode(err, perr.ErrorCodeLoad) || !errors.Is(err, wh.Err) {
				t.Fatalf("err = %v", err)
			}
			last := wh.Calls[len(wh.Calls)-1]
			if !strings.Contains(last, failOn) {
				t.Fatalf("ran past the failing step: %v", wh.Calls)
			}
			if got := wh.Rows(); len(got) != 1 {
				t.Fatalf("canonical changed: %v", got)
			}
		})
	}
}

func TestInsertLiveSQL_Shape(t *testing.T) {
	q := InsertLiveSQL("db.items", "db.raw")
	testkit.MustContain(t, q, "INSERT INTO db.items (id, deleted, type, `by`, time")
	testkit.MustContain(t, q, "JSONExtract(doc, 'kids', 'Array(UInt64)') AS kids")
	testkit.MustContain(t, q, "WHERE id > 0 AND NOT deleted")
	testkit.MustContain(t, q, "LIMIT 1 BY id")
}
