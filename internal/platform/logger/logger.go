// Package logger wraps zerolog with a process root logger and
// run-scoped context fields
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"feedmirror/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Options configures the root logger
type Options struct {
	Level        string
	Format       string // console or json
	Service      string
	Component    string
	Writer       io.Writer
	WithCaller   bool
	SampleEvery  int
	StaticFields map[string]string
}

// FromEnv reads LOG_* through the raw view, which never logs
func FromEnv() Options {
	rc := raw.New().Prefix("LOG_")
	return Options{
		Level:       rc.Get("LEVEL", "debug"),
		Format:      strings.ToLower(rc.Get("FORMAT", "console")),
		Service:     rc.Get("SERVICE", "feedmirror"),
		Component:   rc.Get("COMPONENT", ""),
		WithCaller:  rc.GetBool("CALLER", false),
		SampleEvery: rc.GetInt("SAMPLE_EVERY", 0),
	}
}

var (
	once   sync.Once
	root   atomic.Pointer[zerolog.Logger]
	inited atomic.Bool
)

// Logger is the project logging type
type Logger = zerolog.Logger

// Get returns the root logger, initialising it from env on first use
func Get() *Logger {
	if !inited.Load() {
		Init(FromEnv())
	}
	return root.Load()
}

// New builds a logger from opt without touching the root
func New(opt Options) Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	ctx := zerolog.New(writer(opt)).Level(parseLevel(opt.Level)).With().Timestamp().Fields(fields(opt))
	if opt.WithCaller {
		ctx = ctx.Caller()
	}
	log := ctx.Logger()
	if opt.SampleEvery > 1 {
		log = log.Sample(&zerolog.BasicSampler{N: uint32(opt.SampleEvery)})
	}
	return log
}

// Init sets the root logger; only the first call has any effect
func Init(opt Options) {
	once.Do(func() {
		log := New(opt)
		root.Store(&log)
		inited.Store(true)
	})
}

func writer(opt Options) io.Writer {
	var w io.Writer = os.Stdout
	if opt.Writer != nil {
		w = opt.Writer
	}
	if opt.Format == "console" {
		return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return w
}

// fields are the static fields stamped on every line
func fields(opt Options) map[string]any {
	f := make(map[string]any, len(opt.StaticFields)+3)
	for k, v := range opt.StaticFields {
		f[k] = v
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		f["go_version"] = bi.GoVersion
	}
	if opt.Service != "" {
		f["service"] = opt.Service
	}
	if opt.Component != "" {
		f["component"] = opt.Component
	}
	return f
}

// parseLevel accepts zerolog level names plus "warning"; anything else is debug
func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || lvl == zerolog.NoLevel {
		return zerolog.DebugLevel
	}
	return lvl
}

type ctxKey struct{ name string }

var (
	keyRequestID = ctxKey{"request_id"}
	keyRunID     = ctxKey{"run_id"}
	keyStage     = ctxKey{"stage"}
)

// WithRequest annotates ctx with the request id of an inbound status call
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return context.WithValue(ctx, keyRequestID, reqID)
}

// WithRun annotates ctx with the mirror run id
func WithRun(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, keyRunID, runID)
}

// WithStage annotates ctx with the pipeline stage currently executing
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, keyStage, stage)
}

// RunID returns the run id carried by ctx, if any
func RunID(ctx context.Context) string {
	s, _ := ctx.Value(keyRunID).(string)
	return s
}

// C returns a child logger enriched from ctx (request_id, run_id, stage)
func C(ctx context.Context) *Logger {
	l := Get()
	builder := l.With()
	for _, k := range []ctxKey{keyRequestID, keyRunID, keyStage} {
		if s, ok := ctx.Value(k).(string); ok && s != "" {
			builder = builder.Str(k.name, s)
		}
	}
	ll := builder.Logger()
	return &ll
}

// Named returns a child logger with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	ll := Get().With().Str("component", component).Logger()
	return &ll
}
