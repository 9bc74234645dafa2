package domain

import (
	"context"
	"time"
)

// RunnerPort is the public port exposed by the mirror module
type RunnerPort interface {
	Run(ctx context.Context) (Summary, error)
}

// FeedClient reads the upstream item feed
type FeedClient interface {
	// MaxItemID returns the largest id currently published
	MaxItemID(ctx context.Context) (int64, error)

	// Item returns the raw JSON body for id; a nil body with nil error means no such item
	Item(ctx context.Context, id int64) ([]byte, error)
}

// Warehouse is the analytical store collaborator
type Warehouse interface {
	Execute(ctx context.Context, sql string) error
	FetchOne(ctx context.Context, sql string, dest ...any) error
	UploadFile(ctx context.Context, localPath, stageLocation string) error
	RemoveStagedFiles(ctx context.Context, stageLocation string) error

	// StageSource renders a table expression reading every staged file under stageLocation
	StageSource(stageLocation string) string
}

// MarkReader reads the watermark inputs from the canonical table
type MarkReader interface {
	StoreMark(ctx context.Context, window time.Duration) (StoreMark, error)
}

// LedgerRepo records run history, bound to a Queryer inside a tx
type LedgerRepo interface {
	StartRun(ctx context.Context, rs RunStart) error
	FinishRun(ctx context.Context, runID string, fin RunFinish) error
	RecordSkips(ctx context.Context, runID string, skips []SkippedItem) error
}

// Ledger is the tx-owning facade the coordinator talks to
type Ledger interface {
	StartRun(ctx context.Context, rs RunStart) error
	FinishRun(ctx context.Context, runID string, fin RunFinish, skips []SkippedItem) error
}

// LeaseFunc runs do while holding the single-run lease
type LeaseFunc func(ctx context.Context, owner string, do func(context.Context) error) error

// ProgressSource exposes live per-worker counters
type ProgressSource interface {
	Snapshot() []WorkerProgress
}

// WorkerProgress is one worker's counters at a point in time
type WorkerProgress struct {
	Worker    int   `json:"worker"`
	Processed int64 `json:"processed"`
	Total     int64 `json:"total"`
	Fetched   int64 `json:"fetched"`
	Missing   int64 `json:"missing"`
	Skipped   int64 `json:"skipped"`
}

// RangeResolver decides which ids a run fetches
type RangeResolver interface {
	Resolve(ctx context.Context) (FetchRange, error)
}

// ArtifactLoader merges a batch artifact into the warehouse
type ArtifactLoader interface {
	Load(ctx context.Context, artifactPath string) (LoadSummary, error)
}
