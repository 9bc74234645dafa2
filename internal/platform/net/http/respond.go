// Package http holds the router seam, the server, and the JSON envelope every endpoint answers with
package http

import (
	"encoding/json"
	"net/http"

	perr "feedmirror/internal/platform/errors"
	pnet "feedmirror/internal/platform/net"
)

// Envelope wraps every JSON body
type Envelope struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

// Response is what return-style handlers produce. An error Body picks its own status
type Response struct {
	Status int
	Body   any
	Header http.Header
}

// OK is a 200 with data
func OK(data any) Response { return Response{Status: http.StatusOK, Body: data} }

// Unavailable is a 503 that still carries data, for probes
func Unavailable(data any) Response {
	return Response{Status: http.StatusServiceUnavailable, Body: data}
}

// Error maps err to its status and code
func Error(err error) Response { return Response{Body: err} }

// JSON encodes v with status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Write renders resp as an Envelope
func Write(w http.ResponseWriter, r *http.Request, resp Response) {
	h := w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	env := Envelope{StatusCode: resp.Status, RequestID: pnet.RequestID(r.Context())}
	switch b := resp.Body.(type) {
	case error:
		wire := perr.WireFrom(b)
		env.StatusCode, env.Code, env.Error = perr.HTTPStatus(b), wire.Code, wire.Message
	default:
		if env.StatusCode == 0 {
			env.StatusCode = http.StatusOK
		}
		if env.StatusCode == http.StatusNoContent {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		env.Data = b
	}
	env.Status = http.StatusText(env.StatusCode)
	JSON(w, env.StatusCode, env)
}

// Handle adapts a return-style handler
func Handle(fn func(*http.Request) Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { Write(w, r, fn(r)) }
}

// GetJSON mounts fn at GET path. fn may return a Response to pick the status
func GetJSON(r Router, path string, fn func(*http.Request) (any, error)) {
	r.Get(path, Handle(func(req *http.Request) Response {
		out, err := fn(req)
		if err != nil {
			return Error(err)
		}
		if resp, ok := out.(Response); ok {
			return resp
		}
		return OK(out)
	}))
}
