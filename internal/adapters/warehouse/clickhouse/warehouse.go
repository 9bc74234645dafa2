// Package clickhouse implements the mirror's warehouse collaborator on
// ClickHouse with an S3 compatible landing bucket for staged files
package clickhouse

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	perr "feedmirror/internal/platform/errors"
	"feedmirror/internal/platform/store"
)

// Warehouse runs SQL on ClickHouse and stages files in the landing bucket
type Warehouse struct {
	ch      store.Clickhouse
	landing store.Landing
}

// New binds the two store seams; both are required
func New(ch store.Clickhouse, landing store.Landing) (*Warehouse, error) {
	if ch == nil {
		return nil, perr.InvalidArgf("warehouse: clickhouse is not configured")
	}
	if landing == nil {
		return nil, perr.InvalidArgf("warehouse: landing bucket is not configured")
	}
	return &Warehouse{ch: ch, landing: landing}, nil
}

// Execute runs a statement that returns no rows
func (w *Warehouse) Execute(ctx context.Context, sql string) error {
	return perr.FromClickhouse(w.ch.Exec(ctx, sql), "warehouse: execute")
}

// FetchOne scans the single row sql returns into dest
func (w *Warehouse) FetchOne(ctx context.Context, sql string, dest ...any) error {
	return perr.FromClickhouse(w.ch.QueryRow(ctx, sql).Scan(dest...), "warehouse: fetch one")
}

// UploadFile puts localPath under stageLocation keeping its base name
func (w *Warehouse) UploadFile(ctx context.Context, localPath, stageLocation string) error {
	key := stageKey(stageLocation, filepath.Base(localPath))
	if _, err := w.landing.Put(ctx, localPath, key); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "warehouse: upload %s", key)
	}
	return nil
}

// RemoveStagedFiles deletes every object under stageLocation
func (w *Warehouse) RemoveStagedFiles(ctx context.Context, stageLocation string) error {
	if _, err := w.landing.RemovePrefix(ctx, stageKey(stageLocation, "")); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "warehouse: clear %s", stageLocation)
	}
	return nil
}

// StageSource renders an s3() table function over every staged file, one JSON document per line
func (w *Warehouse) StageSource(stageLocation string) string {
	ak, sk := w.landing.Credentials()
	url := w.landing.URL(stageKey(stageLocation, "*"))
	if ak == "" && sk == "" {
		return fmt.Sprintf("s3(%s, 'JSONAsString')", quote(url))
	}
	return fmt.Sprintf("s3(%s, %s, %s, 'JSONAsString')", quote(url), quote(ak), quote(sk))
}

// stageKey joins the prefix and name with exactly one slash; an empty name keeps the trailing slash
func stageKey(prefix, name string) string {
	return strings.Trim(prefix, "/") + "/" + name
}

// quote renders s as a ClickHouse string literal
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}
