package module

import (
	"runtime"
	"strings"
	"time"

	"feedmirror/internal/platform/config"
	"feedmirror/internal/platform/validate"
	"feedmirror/internal/services/mirror/fetch"
)

// Options holds configuration for the mirror module
type Options struct {
	RateLimit        float64       `env:"CORE_MIRROR_RATE_LIMIT" validate:"gte=0"`
	RateMode         string        `env:"CORE_MIRROR_RATE_MODE" validate:"oneof=worker shared"`
	Workers          int           `env:"CORE_MIRROR_WORKERS" validate:"min=1,max=1024"`
	WorkerMultiplier int           `env:"CORE_MIRROR_WORKER_MULTIPLIER" validate:"min=1"`
	Window           time.Duration `env:"CORE_MIRROR_WINDOW" validate:"gte=0"`
	MaxBatchIDs      int64         `env:"CORE_MIRROR_MAX_BATCH_IDS" validate:"gte=0"`
	FetchRetries     int           `env:"CORE_MIRROR_FETCH_RETRIES" validate:"min=1,max=20"`
	RetryBase        time.Duration `env:"CORE_MIRROR_RETRY_BASE" validate:"gt=0"`
	DataDir          string        `env:"CORE_MIRROR_DATA_DIR" validate:"required"`

	Database    string `env:"CORE_MIRROR_DATABASE" validate:"ident"`
	Table       string `env:"CORE_MIRROR_TABLE" validate:"ident"`
	RawTable    string `env:"CORE_MIRROR_RAW_TABLE" validate:"ident,nefield=Table"`
	StagePrefix string `env:"CORE_MIRROR_STAGE_PREFIX" validate:"required"`

	EnsureSchema  bool
	LeaseTTL      time.Duration `env:"CORE_MIRROR_LEASE_TTL" validate:"gt=0"`
	ProgressEvery time.Duration `env:"CORE_MIRROR_PROGRESS_EVERY" validate:"gte=0"`

	// LedgerStmtTimeout is SET LOCAL statement_timeout for ledger and lease txs
	LedgerStmtTimeout time.Duration `env:"CORE_MIRROR_LEDGER_STMT_TIMEOUT" validate:"gte=0"`

	// Guardrails, 0 disables
	RunTimeout     time.Duration `env:"CORE_MIRROR_RUN_TIMEOUT" validate:"gte=0"`
	ResolveTimeout time.Duration `env:"CORE_MIRROR_RESOLVE_TIMEOUT" validate:"gte=0"`
	LoadTimeout    time.Duration `env:"CORE_MIRROR_LOAD_TIMEOUT" validate:"gte=0"`

	// Feed client
	FeedBaseURL string        `env:"CORE_FEED_BASE_URL" validate:"omitempty,url"`
	FeedTimeout time.Duration `env:"CORE_FEED_TIMEOUT" validate:"gt=0"`
}

var numCPU = runtime.NumCPU

// maxWorkers bounds both explicit and derived worker counts
const maxWorkers = 1024

// FromConfig reads the mirror options from config with CORE_MIRROR_ and CORE_FEED_ prefixes
func FromConfig(cfg config.Conf) Options {
	m := cfg.Prefix("CORE_MIRROR_")
	feed := cfg.Prefix("CORE_FEED_")
	o := Options{
		RateLimit:         m.MayFloat64("RATE_LIMIT", 50),
		RateMode:          strings.ToLower(m.MayEnum("RATE_MODE", fetch.RateModeWorker, fetch.RateModeWorker, fetch.RateModeShared)),
		Workers:           m.MayInt("WORKERS", 0),
		WorkerMultiplier:  m.MayInt("WORKER_MULTIPLIER", 4),
		Window:            m.MayDuration("WINDOW", 168*time.Hour),
		MaxBatchIDs:       int64(m.MayInt("MAX_BATCH_IDS", 0)),
		FetchRetries:      m.MayInt("FETCH_RETRIES", 3),
		RetryBase:         m.MayDuration("RETRY_BASE", 250*time.Millisecond),
		DataDir:           m.MayString("DATA_DIR", "data"),
		Database:          m.MayString("DATABASE", "feedmirror"),
		Table:             m.MayString("TABLE", "items"),
		RawTable:          m.MayString("RAW_TABLE", "items_raw"),
		StagePrefix:       m.MayString("STAGE_PREFIX", "stage/items"),
		EnsureSchema:      m.MayBool("ENSURE_SCHEMA", true),
		LeaseTTL:          m.MayDuration("LEASE_TTL", 6*time.Hour),
		ProgressEvery:     m.MayDuration("PROGRESS_EVERY", 10*time.Second),
		LedgerStmtTimeout: m.MayDuration("LEDGER_STMT_TIMEOUT", 30*time.Second),
		RunTimeout:        m.MayDuration("RUN_TIMEOUT", 0),
		ResolveTimeout:    m.MayDuration("RESOLVE_TIMEOUT", 0),
		LoadTimeout:       m.MayDuration("LOAD_TIMEOUT", 0),
		FeedBaseURL:       feed.MayString("BASE_URL", ""),
		FeedTimeout:       feed.MayDuration("TIMEOUT", 10*time.Second),
	}
	if o.Workers <= 0 {
		mult := o.WorkerMultiplier
		if mult < 1 {
			mult = 1
		}
		o.Workers = min(numCPU()*mult, maxWorkers)
	}
	return o
}

// Validate checks the option tags
func (o Options) Validate() error { return validate.Struct(o) }
