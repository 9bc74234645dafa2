// Package guardrails holds cross cutting safety helpers for mirror runs
package guardrails

import (
	"context"
	"time"

	"feedmirror/internal/platform/logger"
	"feedmirror/internal/platform/store"
	"feedmirror/internal/services/mirror/domain"

	sq "github.com/Masterminds/squirrel"
)

// LeaseName is the single row every mirror process competes for
const LeaseName = "mirror"

// MakeLease returns a LeaseFunc backed by the mirror_leases table.
// A lease is claimed when no row exists or the current one has expired, so a
// crashed run blocks others for at most ttl. It is released when do returns
func MakeLease(db store.TxRunner, ttl time.Duration) domain.LeaseFunc {
	return func(ctx context.Context, owner string, do func(context.Context) error) error {
		claimed, err := claim(ctx, db, owner, ttl)
		if err != nil {
			return err
		}
		if !claimed {
			return domain.ErrLeaseHeld
		}
		defer func() {
			// release even when the run was cancelled
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(rctx, db, owner); err != nil {
				logger.C(ctx).Warn().Err(err).Str("owner", owner).Msg("mirror: lease release failed")
			}
		}()
		return do(ctx)
	}
}

func claim(ctx context.Context, db store.TxRunner, owner string, ttl time.Duration) (claimed bool, err error) {
	err = db.Tx(ctx, func(q store.RowQuerier) error {
		claimed, err = store.Exists(ctx, q, ClaimSQL(owner, ttl))
		return err
	})
	return claimed, err
}

func release(ctx context.Context, db store.TxRunner, owner string) error {
	_, err := store.ExecB(ctx, db, store.PSQL.
		Delete("mirror_leases").
		Where(sq.Eq{"name": LeaseName, "owner": owner}))
	return err
}

// ClaimSQL inserts the lease row or takes over an expired one; a row comes back only on success
func ClaimSQL(owner string, ttl time.Duration) sq.InsertBuilder {
	return store.PSQL.
		Insert("mirror_leases").
		Columns("name", "owner", "claimed_at", "expires_at").
		Values(LeaseName, owner, sq.Expr("now()"), sq.Expr("now() + make_interval(secs => ?)", ttl.Seconds())).
		Suffix(`ON CONFLICT (name) DO UPDATE
			SET owner = EXCLUDED.owner, claimed_at = EXCLUDED.claimed_at, expires_at = EXCLUDED.expires_at
			WHERE mirror_leases.expires_at <= now()
			RETURNING owner`)
}

// NoLease runs do directly; used when no Postgres is configured
func NoLease(ctx context.Context, _ string, do func(context.Context) error) error {
	return do(ctx)
}
