// Package middleware holds the http middlewares the status surface mounts
package middleware

import (
	"net/http"
	"time"

	"feedmirror/internal/platform/logger"
	pnet "feedmirror/internal/platform/net"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequestID reuses or mints X-Request-Id and puts it on the context
func RequestID() func(http.Handler) http.Handler { return middleware.RequestID }

// AccessLogOptions tunes the access log levels
type AccessLogOptions struct {
	// Slow is the warn threshold, 0 disables it
	Slow time.Duration
	// Quiet paths log at debug (probes, scrapes)
	Quiet []string
}

// AccessLogZerolog writes one line per request through the context logger
func AccessLogZerolog(opt AccessLogOptions) func(http.Handler) http.Handler {
	quiet := make(map[string]struct{}, len(opt.Quiet))
	for _, p := range opt.Quiet {
		quiet[p] = struct{}{}
	}
	level := func(r *http.Request, status int, took time.Duration) zerolog.Level {
		if status >= http.StatusInternalServerError {
			return zerolog.ErrorLevel
		}
		if opt.Slow > 0 && took >= opt.Slow {
			return zerolog.WarnLevel
		}
		if _, ok := quiet[r.URL.Path]; ok {
			return zerolog.DebugLevel
		}
		return zerolog.InfoLevel
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			took := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := logger.C(r.Context()).WithLevel(level(r, status, took))
			if id := pnet.RequestID(r.Context()); id != "" {
				ev = ev.Str("request_id", id)
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", took).
				Msg("request done")
		})
	}
}
