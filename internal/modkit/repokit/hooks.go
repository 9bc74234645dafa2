package repokit

import "context"

// BeginHook runs first inside every transaction, on the tx's Queryer
type BeginHook func(ctx context.Context, q Queryer) error

// WithBeginHooks returns db with hooks run in order at the start of each Tx.
// A hook error aborts the tx before fn runs. Non-tx calls go straight to db
func WithBeginHooks(db TxRunner, hooks ...BeginHook) TxRunner {
	if len(hooks) == 0 {
		return db
	}
	return hooked{TxRunner: db, hooks: append([]BeginHook(nil), hooks...)}
}

type hooked struct {
	TxRunner
	hooks []BeginHook
}

func (h hooked) Tx(ctx context.Context, fn func(q Queryer) error) error {
	return h.TxRunner.Tx(ctx, func(q Queryer) error {
		for _, hook := range h.hooks {
			if err := hook(ctx, q); err != nil {
				return err
			}
		}
		return fn(q)
	})
}
