package errors

// ClickHouse-specific helpers for mapping server exceptions to project ErrorCode and retry semantics

import (
	"context"
	stderrs "errors"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouse server exception codes we care about
const (
	chErrTimeoutExceeded        int32 = 159
	chErrTooManyQueries         int32 = 202
	chErrSocketTimeout          int32 = 209
	chErrNetworkError           int32 = 210
	chErrTooManyParts           int32 = 252
	chErrUnknownStatusOfInsert  int32 = 319
	chErrDeadlockAvoided        int32 = 473
	chErrUnknownTable           int32 = 60
	chErrUnknownDatabase        int32 = 81
	chErrCannotParseInputFormat int32 = 27
	chErrIncorrectData          int32 = 117
	chErrS3Error                int32 = 499
)

// ExtractCHException returns (*clickhouse.Exception, true) if err wraps a ClickHouse server exception
func ExtractCHException(err error) (*clickhouse.Exception, bool) {
	var ex *clickhouse.Exception
	if stderrs.As(err, &ex) {
		return ex, true
	}
	return nil, false
}

// CHErrorCode maps a ClickHouse exception to an ErrorCode with an ok flag
func CHErrorCode(err error) (ErrorCode, bool) {
	ex, ok := ExtractCHException(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	switch ex.Code {
	case chErrUnknownTable, chErrUnknownDatabase:
		return ErrorCodeNotFound, true
	case chErrCannotParseInputFormat, chErrIncorrectData:
		return ErrorCodeInvalidArgument, true
	case chErrTimeoutExceeded, chErrTooManyQueries, chErrSocketTimeout, chErrNetworkError,
		chErrTooManyParts, chErrUnknownStatusOfInsert, chErrDeadlockAvoided, chErrS3Error:
		return ErrorCodeUnavailable, true
	}
	return ErrorCodeDB, true
}

// FromClickhouse wraps a ClickHouse error with a mapped ErrorCode and message.
// If err is nil, returns nil
func FromClickhouse(err error, msg string) error {
	if err == nil {
		return nil
	}
	if code, ok := CHErrorCode(err); ok {
		return Wrap(err, code, msg)
	}
	return Wrap(err, ErrorCodeDB, msg)
}

// FromClickhousef is the formatted variant of FromClickhouse
func FromClickhousef(err error, format string, a ...any) error {
	return FromClickhouse(err, fmt.Sprintf(format, a...))
}

// IsCHRetryable reports whether a ClickHouse exception represents a transient server condition
func IsCHRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	code, ok := CHErrorCode(err)
	return ok && code == ErrorCodeUnavailable
}
