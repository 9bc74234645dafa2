// Package ch provides a clickhouse client on top of clickhouse-go with optional query tracing
package ch

import (
	"context"
	"errors"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures the clickhouse client
type Config struct {
	URL         string
	Role        string
	Tag         string
	SlowMs      int
	DialTimeout time.Duration
}

// Rows is the minimal result set iteration for ch
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// Row is a single row result
type Row interface {
	Err() error
	Scan(dest ...any) error
}

// conn is the slice of driver.Conn we rely on
type conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
	Ping(ctx context.Context) error
	Close() error
}

// CH is a clickhouse client with an optional tracer
type CH struct {
	conn   conn
	Tracer QueryTracer
	SlowMs int
}

var openConn = func(opts *clickhouse.Options) (conn, error) { return clickhouse.Open(opts) }

// Open parses the DSN and opens a native protocol connection pool
// the pool connects lazily; callers should Ping before relying on it
func Open(_ context.Context, cfg Config, tracer QueryTracer) (*CH, error) {
	if cfg.URL == "" {
		return nil, errors.New("ch: empty url")
	}
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	opts.ClientInfo = BuildClientInfo(cfg.Role, cfg.Tag)

	c, err := openConn(opts)
	if err != nil {
		return nil, err
	}
	return &CH{conn: c, Tracer: tracer, SlowMs: cfg.SlowMs}, nil
}

// Exec runs a statement that returns no rows (DDL, INSERT .. SELECT, mutations)
func (c *CH) Exec(ctx context.Context, sql string, args ...any) error {
	start := time.Now()
	err := c.conn.Exec(ctx, sql, args...)
	c.emit(ctx, sql, args, start, err)
	return err
}

// Query runs a query and returns ch.Rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := c.conn.Query(ctx, sql, args...)
	c.emit(ctx, sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// QueryRow runs a query expected to return at most one row
// the trace event is emitted once Scan completes
func (c *CH) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	r := c.conn.QueryRow(ctx, sql, args...)
	return &tracedRow{r: r, after: func(err error) { c.emit(ctx, sql, args, start, err) }}
}

// Ping checks connectivity
func (c *CH) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errors.New("ch: nil client")
	}
	return c.conn.Ping(ctx)
}

// Close closes the connection pool
func (c *CH) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *CH) emit(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if c.Tracer == nil {
		return
	}
	elapsedUS := time.Since(start).Microseconds()
	c.Tracer.OnQuery(ctx, QueryEvent{
		SQL:       sql,
		Args:      args,
		ElapsedUS: elapsedUS,
		Err:       err,
		Slow:      c.SlowMs > 0 && elapsedUS >= int64(c.SlowMs)*1000,
	})
}

type tracedRow struct {
	r     driver.Row
	after func(error)
}

func (t *tracedRow) Err() error { return t.r.Err() }

func (t *tracedRow) Scan(dest ...any) error {
	err := t.r.Scan(dest...)
	if t.after != nil {
		t.after(err)
	}
	return err
}
