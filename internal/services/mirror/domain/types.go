// Package domain holds the core data structures and ports for the feed mirror
package domain

import (
	"time"
)

// Item is one feed document as a compacted single JSON line plus its parsed id
type Item struct {
	ID   int64
	Line []byte
}

// FetchRange is an inclusive id range; empty when Low > High
type FetchRange struct {
	Low  int64
	High int64
}

// Len returns the number of ids in the range (0 when empty)
func (r FetchRange) Len() int64 {
	if r.Low > r.High {
		return 0
	}
	return r.High - r.Low + 1
}

// Empty reports whether the range holds no ids
func (r FetchRange) Empty() bool { return r.Low > r.High }

// Contains reports whether id is inside the range
func (r FetchRange) Contains(id int64) bool { return id >= r.Low && id <= r.High }

// Partition is the contiguous sub range owned by one worker
type Partition struct {
	Worker int
	Range  FetchRange
}

// Segment is the append-only output of one worker
type Segment struct {
	Worker int
	Path   string
	Lines  int64
}

// Artifact is the dated batch file produced by the merger
type Artifact struct {
	Path  string
	Day   time.Time
	Lines int64
	Bytes int64
}

// SkippedItem is an id the worker gave up on, with a short reason
type SkippedItem struct {
	ID     int64
	Reason string
}

// Report is what one worker observed while draining its partition
type Report struct {
	Worker  int
	Fetched int64
	Missing int64
	Skipped []SkippedItem
	Elapsed time.Duration
}

// StoreMark is the warehouse's view used to compute the low watermark
// HasRows is false when the canonical table is empty
// MaxIDBeforeWindow is 0 when no row is older than the window
// MaxID is the newest id held, 0 when empty
type StoreMark struct {
	HasRows           bool
	MaxIDBeforeWindow int64
	MaxID             int64
}

// LoadSummary describes what one load did to the warehouse
type LoadSummary struct {
	Staged     uint64
	Tombstones uint64
	Upserted   uint64
	Elapsed    time.Duration
}

// Summary is the outcome of one run
type Summary struct {
	RunID    string
	Range    FetchRange
	Workers  int
	Fetched  int64
	Missing  int64
	Skipped  []SkippedItem
	Artifact Artifact
	Load     LoadSummary
	Elapsed  time.Duration
}

// Run status values stored in the ledger
const (
	RunStatusRunning = "running"
	RunStatusOK      = "ok"
	RunStatusError   = "error"
)

// Pipeline stages, used for logging and the ledger
const (
	StageResolve   = "resolve"
	StagePartition = "partition"
	StageFetch     = "fetch"
	StageMerge     = "merge"
	StageLoad      = "load"
	StageDone      = "done"
)

// RunStart is what the ledger records when a run begins
type RunStart struct {
	RunID     string
	StartedAt time.Time
	Workers   int
}

// RunFinish is what the ledger records when a run ends, successfully or not
type RunFinish struct {
	Status     string
	Stage      string
	Range      FetchRange
	Fetched    int64
	Missing    int64
	Skipped    int
	Staged     uint64
	Upserted   uint64
	Tombstones uint64
	Artifact   string
	ErrText    string
	FinishedAt time.Time
}
