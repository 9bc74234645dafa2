package repo

import (
	"context"

	"feedmirror/internal/modkit/repokit"
)

// Schema is the ledger DDL; every statement is safe to re-run
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS mirror_runs (
		run_id      uuid PRIMARY KEY,
		started_at  timestamptz NOT NULL,
		finished_at timestamptz,
		status      text NOT NULL,
		stage       text,
		low         bigint,
		high        bigint,
		workers     integer NOT NULL DEFAULT 0,
		fetched     bigint NOT NULL DEFAULT 0,
		missing     bigint NOT NULL DEFAULT 0,
		skipped     integer NOT NULL DEFAULT 0,
		staged      bigint NOT NULL DEFAULT 0,
		upserted    bigint NOT NULL DEFAULT 0,
		tombstones  bigint NOT NULL DEFAULT 0,
		artifact    text,
		error       text
	)`,
	`CREATE INDEX IF NOT EXISTS mirror_runs_started_at_idx ON mirror_runs (started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS mirror_skips (
		run_id  uuid NOT NULL REFERENCES mirror_runs (run_id) ON DELETE CASCADE,
		item_id bigint NOT NULL,
		reason  text NOT NULL,
		PRIMARY KEY (run_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS mirror_leases (
		name       text PRIMARY KEY,
		owner      text NOT NULL,
		claimed_at timestamptz NOT NULL,
		expires_at timestamptz NOT NULL
	)`,
}

// Migrate applies Schema in order
func Migrate(ctx context.Context, q repokit.Queryer) error {
	for _, stmt := range Schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
