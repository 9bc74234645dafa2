// Package watermark computes the id range a run has to fetch
package watermark

import (
	"context"
	"fmt"
	"time"

	perr "feedmirror/internal/platform/errors"
	"feedmirror/internal/platform/logger"
	"feedmirror/internal/services/mirror/domain"
)

// Options tunes range resolution
type Options struct {
	// Window is the trailing period re-fetched every run so late edits are picked up
	Window time.Duration

	// MaxBatchIDs caps how many ids past the store's newest one a run takes; 0 means unlimited
	MaxBatchIDs int64
}

// Resolve turns the store mark and the feed's max id into the inclusive fetch range.
// low is one past the newest id older than the window, or 1 when there is none.
// The cap counts from the store's newest id so the window refetch never eats it
func Resolve(mark domain.StoreMark, feedMaxID int64, opts Options) (domain.FetchRange, error) {
	if feedMaxID < 0 {
		return domain.FetchRange{}, perr.Resolutionf("feed max id is negative: %d", feedMaxID)
	}
	low := int64(1)
	if mark.HasRows && mark.MaxIDBeforeWindow > 0 {
		low = mark.MaxIDBeforeWindow + 1
	}
	r := domain.FetchRange{Low: low, High: feedMaxID}
	if opts.MaxBatchIDs > 0 {
		base := low - 1
		if mark.HasRows && mark.MaxID > base {
			base = mark.MaxID
		}
		if limit := base + opts.MaxBatchIDs; r.High > limit {
			r.High = limit
		}
	}
	return r, nil
}

// Resolver reads both inputs and resolves the range
type Resolver struct {
	Marks domain.MarkReader
	Feed  domain.FeedClient
	Opts  Options
}

// New constructs a Resolver
func New(marks domain.MarkReader, feed domain.FeedClient, opts Options) *Resolver {
	if marks == nil || feed == nil {
		panic("watermark.Resolver requires a mark reader and a feed client")
	}
	return &Resolver{Marks: marks, Feed: feed, Opts: opts}
}

// Resolve queries the warehouse and the feed; any failure is a resolution error
func (r *Resolver) Resolve(ctx context.Context) (domain.FetchRange, error) {
	mark, err := r.Marks.StoreMark(ctx, r.Opts.Window)
	if err != nil {
		return domain.FetchRange{}, perr.Wrap(err, perr.ErrorCodeResolution, "read store watermark")
	}
	feedMax, err := r.Feed.MaxItemID(ctx)
	if err != nil {
		return domain.FetchRange{}, perr.Wrap(err, perr.ErrorCodeResolution, "read feed max id")
	}

	rng, err := Resolve(mark, feedMax, r.Opts)
	if err != nil {
		return domain.FetchRange{}, err
	}

	ev := logger.C(ctx).Info().
		Bool("store_has_rows", mark.HasRows).
		Int64("store_max_before_window", mark.MaxIDBeforeWindow).
		Int64("store_max", mark.MaxID).
		Int64("feed_max", feedMax).
		Int64("low", rng.Low).
		Int64("high", rng.High).
		Int64("ids", rng.Len())
	if rng.High < feedMax && !rng.Empty() {
		ev = ev.Int64("backlog", feedMax-rng.High).Int64("max_batch_ids", r.Opts.MaxBatchIDs)
	}
	ev.Msg("mirror: range resolved")
	return rng, nil
}

// WarehouseMarks reads the mark from the canonical table through the warehouse collaborator
type WarehouseMarks struct {
	WH    domain.Warehouse
	Table string // fully qualified, e.g. feedmirror.items
}

// StoreMark returns row presence, the max id whose time is at or before max(time) - window, and the max id
func (m WarehouseMarks) StoreMark(ctx context.Context, window time.Duration) (domain.StoreMark, error) {
	var (
		n        uint64
		markID   uint64
		newestID uint64
	)
	err := m.WH.FetchOne(ctx, MarkSQL(m.Table, window), &n, &markID, &newestID)
	if err != nil {
		return domain.StoreMark{}, err
	}
	return domain.StoreMark{HasRows: n > 0, MaxIDBeforeWindow: int64(markID), MaxID: int64(newestID)}, nil
}

// MarkSQL renders the watermark query; maxIf yields 0 when nothing is old enough
func MarkSQL(table string, window time.Duration) string {
	secs := int64(window / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf(
		"SELECT count() AS n, maxIf(id, time <= (SELECT max(time) FROM %[1]s) - toIntervalSecond(%[2]d)) AS max_id, max(id) AS top_id FROM %[1]s",
		table, secs,
	)
}
