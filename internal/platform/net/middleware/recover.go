package middleware

import (
	"net/http"
	"runtime/debug"

	perr "feedmirror/internal/platform/errors"
	"feedmirror/internal/platform/logger"
	pnet "feedmirror/internal/platform/net"
	phttp "feedmirror/internal/platform/net/http"
)

// RecoverJSON turns a handler panic into a 500 envelope and logs the stack.
// http.ErrAbortHandler is re-raised so the server aborts the connection
func RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			id := pnet.RequestID(r.Context())
			logger.C(r.Context()).Error().
				Str("request_id", id).
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			if id != "" {
				w.Header().Set("X-Request-ID", id)
			}
			phttp.Write(w, r, phttp.Error(perr.PanicErrf("panic recovered")))
		}()
		next.ServeHTTP(w, r)
	})
}
