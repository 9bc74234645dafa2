package errors

import (
	"context"
	stderrs "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgCodes maps the SQLSTATEs the ledger and lease can hit; other states are ErrorCodeDB
var pgCodes = map[string]ErrorCode{
	"23505": ErrorCodeDuplicateKey,    // unique_violation
	"23503": ErrorCodeInvalidArgument, // foreign_key_violation, e.g. skips for an unknown run
	"23502": ErrorCodeValidation,      // not_null_violation
	"23514": ErrorCodeValidation,      // check_violation
	"22P02": ErrorCodeInvalidArgument, // invalid_text_representation, e.g. a bad uuid
	"25006": ErrorCodeUnavailable,     // read_only_sql_transaction, failover in progress
	"57P03": ErrorCodeUnavailable,     // cannot_connect_now
}

// pgTransient are SQLSTATEs a retry of the whole tx can clear
var pgTransient = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled, statement_timeout
}

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	ok := stderrs.As(err, &pgErr)
	return pgErr, ok
}

// DBErrorCode maps a Postgres error to an ErrorCode; !ok when err is not a PgError
func DBErrorCode(err error) (ErrorCode, bool) {
	pgErr, ok := pgError(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	if c, ok := pgCodes[pgErr.Code]; ok {
		return c, true
	}
	return ErrorCodeDB, true
}

// IsDuplicateKey reports a unique constraint violation
func IsDuplicateKey(err error) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == "23505"
}

// FromPostgres wraps err with its mapped code; nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code, ok := DBErrorCode(err)
	if !ok {
		code = ErrorCodeDB
	}
	return WithField(Wrap(err, code, msg), pgField(err))
}

// pgField names the column a constraint error is about, when the server says
func pgField(err error) string {
	if pgErr, ok := pgError(err); ok {
		return strings.TrimSpace(pgErr.ColumnName)
	}
	return ""
}

// IsPGRetryable reports a transient Postgres failure. Local cancellation is
// never retryable; pgx commit failures only surface as text
func IsPGRetryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pgErr, ok := pgError(err); ok {
		return pgTransient[pgErr.Code]
	}
	s := strings.ToLower(Root(err).Error())
	return strings.Contains(s, "commit unexpectedly resulted in rollback") ||
		strings.Contains(s, "terminating connection due to administrator command")
}
