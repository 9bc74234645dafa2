// Package store opens the backends a run needs and hides each one behind a small seam
package store

import (
	"context"
	"errors"
	"fmt"

	"feedmirror/internal/platform/logger"
)

// Row scans one result row
type Row interface {
	Scan(dest ...any) error
}

// Rows iterates a result set; Close is safe to call twice
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() []string
	Err() error
	Close()
}

// CommandTag reports what a write did
type CommandTag interface {
	RowsAffected() int64
	String() string
}

// RowQuerier is the SQL surface repos are written against
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner is a RowQuerier that can also run fn inside one transaction
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Clickhouse runs warehouse statements. Exec has no command tag on the native protocol
type Clickhouse interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
	Close() error
}

// Landing is the bucket staged segments are uploaded to and read back from by ClickHouse
type Landing interface {
	Put(ctx context.Context, localPath, key string) (int64, error)
	RemovePrefix(ctx context.Context, prefix string) (int, error)
	URL(key string) string
	Credentials() (accessKey, secretKey string)
}

// Pinger reports readiness
type Pinger interface{ Ping(context.Context) error }

// Store holds whichever backends were enabled; the rest stay nil
type Store struct {
	Log     logger.Logger
	PG      TxRunner
	CH      Clickhouse
	Landing Landing
}

// Open connects every enabled backend, closing the ones already open if a later one fails
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{Log: logger.Get().With().Logger()}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	var err error
	if cfg.PG.Enabled {
		if s.PG, err = openPG(ctx, cfg, s); err != nil {
			return nil, err
		}
	}
	if cfg.CH.Enabled {
		if s.CH, err = openCH(ctx, cfg, s); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
	}
	if cfg.Landing.Enabled {
		if s.Landing, err = openLanding(ctx, cfg); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
	}
	return s, nil
}

type seam struct {
	name string
	v    any
}

// seams lists the open backends in a stable order
func (s *Store) seams() []seam {
	var out []seam
	if s.PG != nil {
		out = append(out, seam{"pg", s.PG})
	}
	if s.CH != nil {
		out = append(out, seam{"ch", s.CH})
	}
	if s.Landing != nil {
		out = append(out, seam{"landing", s.Landing})
	}
	return out
}

// Guard pings every open backend that can be pinged and joins the failures
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("store: nil store")
	}
	var errs []error
	for _, sm := range s.seams() {
		p, ok := sm.v.(Pinger)
		if !ok {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sm.name, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases every backend that holds connections
func (s *Store) Close(context.Context) error {
	var errs []error
	for _, sm := range s.seams() {
		c, ok := sm.v.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sm.name, err))
		}
	}
	return errors.Join(errs...)
}
