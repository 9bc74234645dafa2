package fetch

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	perr "feedmirror/internal/platform/errors"
	"feedmirror/internal/services/mirror/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeFeed serves bodies by id; errs are consumed one per call before the body is served
type fakeFeed struct {
	mu     sync.Mutex
	bodies map[int64]string
	errs   map[int64][]error
	calls  map[int64]int
}

func newFeed() *fakeFeed {
	return &fakeFeed{bodies: map[int64]string{}, errs: map[int64][]error{}, calls: map[int64]int{}}
}

func (f *fakeFeed) MaxItemID(context.Context) (int64, error) { return 0, nil }

func (f *fakeFeed) Item(_ context.Context, id int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if q := f.errs[id]; len(q) > 0 {
		f.errs[id] = q[1:]
		return nil, q[0]
	}
	b, ok := f.bodies[id]
	if !ok {
		return nil, nil
	}
	return []byte(b), nil
}

type memSink struct {
	worker    int
	lines     []string
	appendErr error
	closeErr  error
	closed    bool
}

func (s *memSink) Append(line []byte) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.lines = append(s.lines, string(line))
	return nil
}

func (s *memSink) Close() (domain.Segment, error) {
	s.closed = true
	if s.closeErr != nil {
		return domain.Segment{}, s.closeErr
	}
	return domain.Segment{Worker: s.worker, Path: "mem", Lines: int64(len(s.lines))}, nil
}

func newWorker(feed domain.FeedClient, sink *memSink, attempts int) *Worker {
	return &Worker{
		Feed:  feed,
		Pacer: NewPacers(0, 1, RateModeWorker)[0],
		Open: func(w int) (Sink, error) {
			sink.worker = w
			return sink, nil
		},
		Cfg: Config{Attempts: attempts, RetryBase: time.Millisecond},
	}
}

func part(worker int, lo, hi int64) domain.Partition {
	return domain.Partition{Worker: worker, Range: domain.FetchRange{Low: lo, High: hi}}
}

func TestNormalize(t *testing.T) {
	line, err := Normalize(7, []byte("{\n  \"id\": 7,\n  \"by\": \"pg\",\n  \"text\": \"a b\"\n}"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := string(line); got != `{"id":7,"by":"pg","text":"a b"}` {
		t.Fatalf("line = %s", got)
	}

	cases := map[string]string{
		"malformed":   `{"id": 7,`,
		"no id":       `{"by":"pg"}`,
		"string id":   `{"id":"7"}`,
		"id mismatch": `{"id":8}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(7, []byte(body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !perr.IsCode(err, perr.ErrorCodeFetch) {
				t.Fatalf("code = %v", perr.CodeOf(err))
			}
		})
	}
}

func TestWorker_WritesAscendingLines(t *testing.T) {
	feed := newFeed()
	for id := int64(101); id <= 103; id++ {
		feed.bodies[id] = `{"id": ` + strconv.FormatInt(id, 10) + `}`
	}
	sink := &memSink{}
	seg, rep, err := newWorker(feed, sink, 1).Run(context.Background(), part(0, 101, 103))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{`{"id":101}`, `{"id":102}`, `{"id":103}`}
	if strings.Join(sink.lines, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %v", sink.lines)
	}
	if seg.Lines != 3 || rep.Fetched != 3 || rep.Missing != 0 || len(rep.Skipped) != 0 {
		t.Fatalf("seg=%+v rep=%+v", seg, rep)
	}
	if !sink.closed {
		t.Fatalf("sink not closed")
	}
}

func TestWorker_NullIsMissingNotFailure(t *testing.T) {
	feed := newFeed()
	feed.bodies[1] = `{"id":1}`
	sink := &memSink{}
	_, rep, err := newWorker(feed, sink, 1).Run(context.Background(), part(0, 1, 3))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Fetched != 1 || rep.Missing != 2 || len(rep.Skipped) != 0 {
		t.Fatalf("rep = %+v", rep)
	}
}

func TestWorker_RetriesTransientThenSucceeds(t *testing.T) {
	feed := newFeed()
	feed.bodies[5] = `{"id":5}`
	feed.errs[5] = []error{perr.Unavailablef("503"), perr.New(perr.ErrorCodeTooManyRequests, "429")}
	sink := &memSink{}
	_, rep, err := newWorker(feed, sink, 3).Run(context.Background(), part(0, 5, 5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Fetched != 1 || feed.calls[5] != 3 {
		t.Fatalf("rep=%+v calls=%d", rep, feed.calls[5])
	}
}

func TestWorker_SkipsAfterRetriesExhausted(t *testing.T) {
	feed := newFeed()
	feed.bodies[5] = `{"id":5}`
	feed.bodies[6] = `{"id":6}`
	feed.errs[5] = []error{perr.Unavailablef("a"), perr.Unavailablef("b"), perr.Unavailablef("c")}
	sink := &memSink{}
	_, rep, err := newWorker(feed, sink, 2).Run(context.Background(), part(0, 5, 6))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if feed.calls[5] != 2 {
		t.Fatalf("attempts = %d, want 2", feed.calls[5])
	}
	if len(rep.Skipped) != 1 || rep.Skipped[0].ID != 5 || rep.Skipped[0].Reason == "" {
		t.Fatalf("skipped = %+v", rep.Skipped)
	}
	if rep.Fetched != 1 || sink.lines[0] != `{"id":6}` {
		t.Fatalf("rep=%+v lines=%v", rep, sink.lines)
	}
}

func TestWorker_PermanentFailureIsNotRetried(t *testing.T) {
	feed := newFeed()
	feed.bodies[9] = `{"id":10}`
	feed.errs[8] = []error{perr.Newf(perr.ErrorCodeFetch, "status 403")}
	sink := &memSink{}
	_, rep, err := newWorker(feed, sink, 5).Run(context.Background(), part(0, 8, 9))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if feed.calls[8] != 1 || feed.calls[9] != 1 {
		t.Fatalf("calls = %v", feed.calls)
	}
	if len(rep.Skipped) != 2 || len(sink.lines) != 0 {
		t.Fatalf("rep=%+v lines=%v", rep, sink.lines)
	}
}

func TestWorker_SinkFailureIsFatal(t *testing.T) {
	feed := newFeed()
	feed.bodies[1] = `{"id":1}`
	sink := &memSink{appendErr: errors.New("disk full")}
	_, _, err := newWorker(feed, sink, 1).Run(context.Background(), part(0, 1, 2))
	if !perr.IsCode(err, perr.ErrorCodeFetch) {
		t.Fatalf("err = %v", err)
	}
	if feed.calls[2] != 0 {
		t.Fatalf("worker kept going after sink failure")
	}

	sink = &memSink{closeErr: errors.New("flush")}
	if _, _, err := newWorker(feed, sink, 1).Run(context.Background(), part(0, 1, 1)); !perr.IsCode(err, perr.ErrorCodeFetch) {
		t.Fatalf("close err = %v", err)
	}
}

func TestWorker_OpenFailure(t *testing.T) {
	w := newWorker(newFeed(), &memSink{}, 1)
	w.Open = func(int) (Sink, error) { return nil, errors.New("perm") }
	if _, _, err := w.Run(context.Background(), part(0, 1, 1)); !perr.IsCode(err, perr.ErrorCodeFetch) {
		t.Fatalf("err = %v", err)
	}
}

func TestWorker_EmptyPartition(t *testing.T) {
	feed := newFeed()
	sink := &memSink{}
	seg, rep, err := newWorker(feed, sink, 1).Run(context.Background(), part(3, 106, 105))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seg.Lines != 0 || seg.Worker != 3 || rep.Fetched != 0 || len(feed.calls) != 0 || !sink.closed {
		t.Fatalf("seg=%+v rep=%+v calls=%v", seg, rep, feed.calls)
	}
}

func TestWorker_CancelledStopsAndClosesSink(t *testing.T) {
	feed := newFeed()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &memSink{}
	_, _, err := newWorker(feed, sink, 1).Run(ctx, part(0, 1, 100))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(feed.calls) != 0 || !sink.closed {
		t.Fatalf("calls=%v closed=%v", feed.calls, sink.closed)
	}
}

func TestWorker_CountersAndMetrics(t *testing.T) {
	feed := newFeed()
	feed.bodies[1] = `{"id":1}`
	feed.errs[3] = []error{perr.Newf(perr.ErrorCodeFetch, "nope")}

	parts := []domain.Partition{part(0, 1, 3)}
	prog := NewProgress(parts)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	w := newWorker(feed, &memSink{}, 1)
	w.Counters = prog.Worker(0)
	w.Metrics = m
	if _, _, err := w.Run(context.Background(), parts[0]); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := prog.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	got := snap[0]
	if got.Processed != 3 || got.Total != 3 || got.Fetched != 1 || got.Missing != 1 || got.Skipped != 1 {
		t.Fatalf("progress = %+v", got)
	}
	if done, total := prog.Totals(); done != 3 || total != 3 {
		t.Fatalf("totals = %d/%d", done, total)
	}
	for outcome, want := range map[string]float64{OutcomeFetched: 1, OutcomeMissing: 1, OutcomeSkipped: 1} {
		if v := testutil.ToFloat64(m.Items.WithLabelValues(outcome)); v != want {
			t.Fatalf("%s = %v, want %v", outcome, v, want)
		}
	}
	if v := testutil.ToFloat64(m.Processed.WithLabelValues("0")); v != 3 {
		t.Fatalf("processed gauge = %v", v)
	}
}

func TestBoard_NilUntilSet(t *testing.T) {
	var b Board
	if b.Snapshot() != nil {
		t.Fatalf("empty board should snapshot nil")
	}
	b.Set(NewProgress([]domain.Partition{part(0, 1, 2), part(1, 3, 3)}))
	snap := b.Snapshot()
	if len(snap) != 2 || snap[1].Worker != 1 || snap[1].Total != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestProgress_ReportStopsOnCancel(t *testing.T) {
	p := NewProgress([]domain.Partition{part(0, 1, 10)})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Report(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reporter did not stop")
	}

	// zero interval returns immediately
	p.Report(context.Background(), 0)
}

func TestPacers_Modes(t *testing.T) {
	ps := NewPacers(10, 3, RateModeShared)
	if len(ps) != 3 || ps[0] != ps[1] || ps[1] != ps[2] {
		t.Fatalf("shared mode should hand out one limiter")
	}
	ps = NewPacers(10, 2, RateModeWorker)
	if ps[0] == ps[1] {
		t.Fatalf("worker mode should hand out distinct limiters")
	}
	if got := len(NewPacers(10, 0, RateModeWorker)); got != 1 {
		t.Fatalf("workers<1 -> %d pacers", got)
	}
}

func TestPacer_SpacesRequestStarts(t *testing.T) {
	const (
		global  = 40.0
		workers = 2
		n       = 5
	)
	// per worker rate is 20/s, so n starts span at least (n-1)/20 s
	p := NewPacers(global, workers, RateModeWorker)[0]
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < n; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	floor := time.Duration(float64(n-1) / (global / workers) * float64(time.Second))
	if el := time.Since(start); el < floor-5*time.Millisecond {
		t.Fatalf("elapsed %v < %v", el, floor)
	}
}

func TestPacer_WaitHonoursContext(t *testing.T) {
	p := NewPacers(0.5, 1, RateModeWorker)[0]
	_ = p.Wait(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx); err == nil {
		t.Fatalf("expected wait to fail under a short deadline")
	}
}
