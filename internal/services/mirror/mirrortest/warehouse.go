// Package mirrortest provides in-memory collaborators for mirror tests
package mirrortest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/buger/jsonparser"
)

// Warehouse is an in-memory stand-in that understands the statements the
// loader and the watermark reader issue, so merge outcomes can be asserted
type Warehouse struct {
	mu     sync.Mutex
	rows   map[int64]string
	raw    []string
	staged map[string][]byte

	// Calls records every operation in order ("exec: ...", "fetch: ...", "upload: ...", "remove: ...")
	Calls []string

	// FailOn makes any call whose record contains the substring fail with Err
	FailOn string
	Err    error
}

// NewWarehouse returns an empty warehouse
func NewWarehouse() *Warehouse {
	return &Warehouse{rows: map[int64]string{}, staged: map[string][]byte{}}
}

// Seed puts canonical rows in place, keyed by their id
func (w *Warehouse) Seed(docs ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range docs {
		id, _ := jsonparser.GetInt([]byte(d), "id")
		w.rows[id] = d
	}
}

// Rows returns the canonical ids in ascending order
func (w *Warehouse) Rows() []int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]int64, 0, len(w.rows))
	for id := range w.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Doc returns the canonical document for id
func (w *Warehouse) Doc(id int64) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.rows[id]
	return d, ok
}

// Staged returns the keys currently in the landing area
func (w *Warehouse) Staged() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	keys := make([]string, 0, len(w.staged))
	for k := range w.staged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (w *Warehouse) record(call string) error {
	w.Calls = append(w.Calls, call)
	if w.FailOn != "" && strings.Contains(call, w.FailOn) {
		if w.Err != nil {
			return w.Err
		}
		return errors.New("mirrortest: injected failure")
	}
	return nil
}

// Execute applies a statement
func (w *Warehouse) Execute(_ context.Context, sql string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.record("exec: " + sql); err != nil {
		return err
	}
	switch {
	case strings.HasPrefix(sql, "CREATE"):
	case strings.HasPrefix(sql, "TRUNCATE"):
		w.raw = nil
	case strings.Contains(sql, "(doc) SELECT json FROM"):
		keys := make([]string, 0, len(w.staged))
		for k := range w.staged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sc := bufio.NewScanner(bytes.NewReader(w.staged[k]))
			sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
			for sc.Scan() {
				if line := sc.Text(); line != "" {
					w.raw = append(w.raw, line)
				}
			}
		}
	case strings.HasPrefix(sql, "ALTER TABLE") && strings.Contains(sql, "DELETE WHERE id IN"):
		for _, doc := range w.raw {
			id, _, _ := docKey(doc)
			delete(w.rows, id)
		}
	case strings.HasPrefix(sql, "INSERT INTO") && strings.Contains(sql, "LIMIT 1 BY id"):
		seen := map[int64]bool{}
		for _, doc := range w.raw {
			id, deleted, _ := docKey(doc)
			if id <= 0 || deleted || seen[id] {
				continue
			}
			seen[id] = true
			w.rows[id] = doc
		}
	default:
		return fmt.Errorf("mirrortest: unsupported statement: %s", sql)
	}
	return nil
}

var intervalSecs = regexp.MustCompile(`toIntervalSecond\((\d+)\)`)

// FetchOne answers the watermark and load count queries; dest are *uint64
func (w *Warehouse) FetchOne(_ context.Context, sql string, dest ...any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.record("fetch: " + sql); err != nil {
		return err
	}
	var vals []uint64
	switch {
	case strings.Contains(sql, "maxIf(id"):
		secs := int64(0)
		if m := intervalSecs.FindStringSubmatch(sql); m != nil {
			secs, _ = strconv.ParseInt(m[1], 10, 64)
		}
		var maxTime int64
		for _, d := range w.rows {
			if _, _, t := docKey(d); t > maxTime {
				maxTime = t
			}
		}
		var maxID, topID int64
		for id, d := range w.rows {
			if _, _, t := docKey(d); t <= maxTime-secs && id > maxID {
				maxID = id
			}
			if id > topID {
				topID = id
			}
		}
		vals = []uint64{uint64(len(w.rows)), uint64(maxID), uint64(topID)}
	case strings.Contains(sql, "AS staged"):
		var tomb uint64
		live := map[int64]bool{}
		for _, doc := range w.raw {
			id, deleted, _ := docKey(doc)
			if deleted {
				if _, ok := w.rows[id]; ok {
					tomb++
				}
				continue
			}
			if id > 0 {
				live[id] = true
			}
		}
		vals = []uint64{uint64(len(w.raw)), tomb, uint64(len(live))}
	default:
		return fmt.Errorf("mirrortest: unsupported query: %s", sql)
	}
	if len(dest) != len(vals) {
		return fmt.Errorf("mirrortest: %d destinations for %d columns", len(dest), len(vals))
	}
	for i, d := range dest {
		p, ok := d.(*uint64)
		if !ok {
			return fmt.Errorf("mirrortest: destination %d is %T", i, d)
		}
		*p = vals[i]
	}
	return nil
}

// UploadFile copies the local file into the landing area under stageLocation
func (w *Warehouse) UploadFile(_ context.Context, localPath, stageLocation string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.record("upload: " + stageLocation); err != nil {
		return err
	}
	b, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	w.staged[strings.TrimRight(stageLocation, "/")+"/"+filepath.Base(localPath)] = b
	return nil
}

// RemoveStagedFiles drops everything under stageLocation
func (w *Warehouse) RemoveStagedFiles(_ context.Context, stageLocation string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.record("remove: " + stageLocation); err != nil {
		return err
	}
	for k := range w.staged {
		if strings.HasPrefix(k, strings.TrimRight(stageLocation, "/")+"/") {
			delete(w.staged, k)
		}
	}
	return nil
}

// StageSource names the staged files
func (w *Warehouse) StageSource(stageLocation string) string {
	return fmt.Sprintf("s3('mem://%s/*', 'JSONAsString')", strings.TrimRight(stageLocation, "/"))
}

// docKey extracts id, deleted and time, defaulting missing fields to zero
func docKey(doc string) (id int64, deleted bool, t int64) {
	b := []byte(doc)
	id, _ = jsonparser.GetInt(b, "id")
	deleted, _ = jsonparser.GetBoolean(b, "deleted")
	t, _ = jsonparser.GetInt(b, "time")
	return id, deleted, t
}

// Item renders a minimal item document
func Item(id int64, at time.Time, extra string) string {
	s := fmt.Sprintf(`{"id":%d,"time":%d`, id, at.Unix())
	if extra != "" {
		s += "," + extra
	}
	return s + "}"
}
