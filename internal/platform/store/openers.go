package store

import (
	"context"
	"fmt"
	"time"

	"feedmirror/internal/platform/logger"
	chx "feedmirror/internal/platform/store/ch"
	"feedmirror/internal/platform/store/landing"
	"feedmirror/internal/platform/store/pg"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultConnectRetries = 6
	defaultPingTimeout    = 3 * time.Second
)

// pingWithBackoff pings until it succeeds, attempts run out or ctx ends.
// Each attempt gets its own timeout
func pingWithBackoff(ctx context.Context, attempts int, timeout time.Duration, ping func(context.Context) error) error {
	return pingLogged(ctx, logger.Logger{}, "", attempts, timeout, ping)
}

func pingLogged(ctx context.Context, log logger.Logger, name string, attempts int, timeout time.Duration, ping func(context.Context) error) error {
	if attempts < 1 {
		attempts = defaultConnectRetries
	}
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 150 * time.Millisecond
	eb.MaxInterval = 2 * time.Second
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	err := backoff.RetryNotify(func() error {
		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return ping(actx)
	}, policy, func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("backend", name).Dur("retry_in", wait).Msg("store: ping failed, retrying")
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("ping failed after %d attempts: %w", attempts, err)
	}
}

func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}
	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
		AppName:  cfg.AppName,
	}, tracer, nil)
	if err != nil {
		return nil, err
	}
	// the pool's own Ping keeps boot retries out of the sql trace
	if err := pingLogged(ctx, s.Log, "pg", cfg.PG.ConnectRetries, cfg.PG.PingTimeout, p.Pool.Ping); err != nil {
		p.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return newPGAdapter(p), nil
}

func openCH(ctx context.Context, cfg Config, s *Store) (Clickhouse, error) {
	var tracer chx.QueryTracer
	if cfg.CH.LogSQL {
		tracer = chx.Tracer(s.Log)
	}
	role := cfg.CH.Role
	if role == "" {
		role = cfg.AppName
	}
	c, err := chx.Open(ctx, chx.Config{
		URL:         cfg.CH.URL,
		Role:        role,
		SlowMs:      cfg.CH.SlowQueryMs,
		DialTimeout: cfg.CH.DialTimeout,
	}, tracer)
	if err != nil {
		return nil, err
	}
	if err := pingLogged(ctx, s.Log, "ch", cfg.CH.ConnectRetries, cfg.CH.DialTimeout, c.Ping); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("clickhouse: %w", err)
	}
	return newCHAdapter(c), nil
}

func openLanding(ctx context.Context, cfg Config) (Landing, error) {
	l := cfg.Landing
	c, err := landing.Open(ctx, landing.Config{
		Endpoint:  l.Endpoint,
		AccessKey: l.AccessKey,
		SecretKey: l.SecretKey,
		Bucket:    l.Bucket,
		Region:    l.Region,
		UseSSL:    l.UseSSL,
		PublicURL: l.PublicURL,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
