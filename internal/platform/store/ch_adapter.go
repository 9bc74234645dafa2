package store

import (
	"context"
	"fmt"

	"feedmirror/internal/platform/store/ch"
)

// chClient is what the adapter needs from *ch.CH
type chClient interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (ch.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) ch.Row
	Ping(ctx context.Context) error
	Close() error
}

// chAdapter exposes a ch client as Clickhouse
type chAdapter struct{ inner chClient }

func newCHAdapter(c chClient) chAdapter { return chAdapter{inner: c} }

func (a chAdapter) Exec(ctx context.Context, sql string, args ...any) error {
	return a.inner.Exec(ctx, sql, args...)
}

func (a chAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := a.inner.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return chRows{r}, nil
}

func (a chAdapter) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return a.inner.QueryRow(ctx, sql, args...)
}

func (a chAdapter) Close() error { return a.inner.Close() }

// Ping checks the connection and that a query round trips
func (a chAdapter) Ping(ctx context.Context) error {
	if err := a.inner.Ping(ctx); err != nil {
		return err
	}
	var one uint8
	if err := a.inner.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return err
	}
	if one != 1 {
		return fmt.Errorf("store: SELECT 1 returned %d", one)
	}
	return nil
}

// chRows drops the error from ch.Rows.Close
type chRows struct{ ch.Rows }

func (r chRows) Close() { _ = r.Rows.Close() }
