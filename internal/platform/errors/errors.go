// Package errors provides a coded error type shared by every mirror stage.
// Import it as perr
package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a failure. Values appear in logs and the status
// envelope so new codes go at the end
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota
	// ErrorCodePanic is for panics recovered by middleware
	ErrorCodePanic
	// ErrorCodeUnavailable is for transient dependency failures
	ErrorCodeUnavailable
	// ErrorCodeTooManyRequests is for upstream throttling
	ErrorCodeTooManyRequests
	// ErrorCodeInvalidArgument is for bad parameters and programmer errors
	ErrorCodeInvalidArgument
	// ErrorCodeValidation is for configuration that fails its tags
	ErrorCodeValidation
	// ErrorCodeNotFound is for missing tables, objects or items
	ErrorCodeNotFound
	// ErrorCodeDuplicateKey is for unique constraint violations
	ErrorCodeDuplicateKey
	// ErrorCodeDB is for other database errors
	ErrorCodeDB
	// ErrorCodeResolution is for failures computing the fetch range
	ErrorCodeResolution
	// ErrorCodeFetch is for feed fetch and worker output failures
	ErrorCodeFetch
	// ErrorCodeMerge is for failures concatenating worker segments
	ErrorCodeMerge
	// ErrorCodeLoad is for warehouse staging, copy and merge failures
	ErrorCodeLoad
)

var httpStatus = map[ErrorCode]int{
	ErrorCodeUnavailable:     http.StatusServiceUnavailable,
	ErrorCodeTooManyRequests: http.StatusTooManyRequests,
	ErrorCodeInvalidArgument: http.StatusUnprocessableEntity,
	ErrorCodeValidation:      http.StatusBadRequest,
	ErrorCodeNotFound:        http.StatusNotFound,
	ErrorCodeDuplicateKey:    http.StatusConflict,
	ErrorCodeResolution:      http.StatusBadGateway,
	ErrorCodeFetch:           http.StatusBadGateway,
	ErrorCodeLoad:            http.StatusBadGateway,
}

// HTTPStatusCode maps an ErrorCode to a status; unmapped codes are 500
func HTTPStatusCode(c ErrorCode) int {
	if s, ok := httpStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// ErrNotFound is a sentinel not found error
var ErrNotFound = New(ErrorCodeNotFound, "not found")

// Error carries a code, a message, an optional field and op label, and the cause
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
	op    string
}

// Wire is the JSON form of an error in response envelopes
type Wire struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.orig != nil:
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	default:
		return e.msg
	}
}

// Unwrap returns the cause
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending field, if any
func (e *Error) Field() string { return e.field }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// WireFrom converts any error to its envelope form; foreign errors are Unknown
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return Wire{Code: e.code, Message: e.msg, Field: e.field}
	}
	return Wire{Code: ErrorCodeUnknown, Message: err.Error()}
}

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// As returns the outermost *Error in the chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost *Error, or Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err carries code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// HTTPStatus maps any error to a status
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// WithField returns a copy of err with field set; foreign errors pass through
func WithField(err error, field string) error {
	return mutate(err, func(c *Error) { c.field = field })
}

// WithOp returns a copy of err with an operation label; foreign errors pass through
func WithOp(err error, op string) error {
	return mutate(err, func(c *Error) { c.op = op })
}

func mutate(err error, fn func(*Error)) error {
	e, ok := As(err)
	if !ok {
		return err
	}
	c := *e
	fn(&c)
	return &c
}

// New returns an *Error with code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf is New with a format
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns an *Error around orig
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf is Wrap with a format
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// WrapIf wraps only when err != nil
func WrapIf(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, msg)
}

// NotFoundf returns a not found error
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

// InvalidArgf returns an invalid argument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// Unavailablef returns an unavailable error
func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }

// Resolutionf returns a watermark resolution error
func Resolutionf(format string, a ...any) error { return Newf(ErrorCodeResolution, format, a...) }

// PanicErrf returns a panic error
func PanicErrf(format string, a ...any) error { return Newf(ErrorCodePanic, format, a...) }

// Retryable reports whether another attempt may succeed: an Unavailable or
// TooManyRequests code, or a transient Postgres or ClickHouse failure underneath
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case ErrorCodeUnavailable, ErrorCodeTooManyRequests:
		return true
	}
	return IsPGRetryable(err) || IsCHRetryable(err)
}
