// Package repokit is the seam between SQL repos and the store's transaction runner
package repokit

import (
	"context"

	"feedmirror/internal/platform/store"
)

// store surface, aliased so repos import one package
type (
	Queryer    = store.RowQuerier
	TxRunner   = store.TxRunner
	Rows       = store.Rows
	Row        = store.Row
	CommandTag = store.CommandTag
)

// Binder turns a Queryer (pool or tx) into a repo of type T
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a plain func to Binder
type BindFunc[T any] func(Queryer) T

// Bind calls f
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// MustBind binds q and panics when either side is nil
func MustBind[T any](b Binder[T], q Queryer) T {
	if b == nil || q == nil {
		panic("repokit: bind with nil binder or queryer")
	}
	return b.Bind(q)
}

// WithTx runs fn in one transaction on db
func WithTx(ctx context.Context, db TxRunner, fn func(q Queryer) error) error {
	return db.Tx(ctx, fn)
}
