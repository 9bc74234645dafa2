package store

import (
	"context"

	perr "feedmirror/internal/platform/errors"

	sq "github.com/Masterminds/squirrel"
)

// PSQL builds Postgres statements with $n placeholders
var PSQL = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func render(b sq.Sqlizer) (string, []any, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return "", nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "build sql")
	}
	return sql, args, nil
}

// ExecB renders b and executes it
func ExecB(ctx context.Context, q RowQuerier, b sq.Sqlizer) (CommandTag, error) {
	sql, args, err := render(b)
	if err != nil {
		return nil, err
	}
	return q.Exec(ctx, sql, args...)
}

// Exists renders b and reports whether it returned at least one row,
// e.g. an upsert with a conditional RETURNING
func Exists(ctx context.Context, q RowQuerier, b sq.Sqlizer) (bool, error) {
	sql, args, err := render(b)
	if err != nil {
		return false, err
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}
