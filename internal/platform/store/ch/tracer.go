package ch

import (
	"context"
	"regexp"
	"strings"

	"feedmirror/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one finished statement
type QueryEvent struct {
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives query events
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer returns a tracer that prints every statement, independent of the root level
func Tracer(root logger.Logger) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "ch").Logger()
	return &zlTracer{log: ll}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(ctx context.Context, ev QueryEvent) {
	evt := z.log.Info()
	if ev.Err != nil {
		evt = z.log.Error()
	} else if ev.Slow {
		evt = z.log.Warn()
	}
	if id := logger.RunID(ctx); id != "" {
		evt = evt.Str("run_id", id)
	}
	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Str("sql", Redact(compact(ev.SQL))).
		Err(ev.Err).
		Msg("ch query")
}

// s3('<url>', '<key>', '<secret>' ...) -> keep the url, mask the credentials
var s3Creds = regexp.MustCompile(`(?i)(s3\(\s*'[^']*'\s*,\s*)'[^']*'(\s*,\s*)'[^']*'`)

// Redact masks credentials passed to table functions in sql text
func Redact(sql string) string {
	return s3Creds.ReplaceAllString(sql, "$1'***'$2'***'")
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
