package repokit

import (
	"context"
	"time"

	perr "feedmirror/internal/platform/errors"
)

// PingTimeout bounds Ping when ctx carries no deadline
const PingTimeout = 5 * time.Second

type guarder interface {
	Guard(context.Context) error
}

// Ping checks a dependency answers within PingTimeout unless ctx already has a deadline
func Ping(ctx context.Context, name string, p interface{ Ping(context.Context) error }) error {
	if p == nil {
		return perr.Newf(perr.ErrorCodeUnavailable, "%s: nil dependency", name)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, PingTimeout)
		defer cancel()
	}
	if err := p.Ping(ctx); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s ping failed", name)
	}
	return nil
}

// Guard runs the store guard once at startup
func Guard(ctx context.Context, st guarder) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, PingTimeout)
		defer cancel()
	}
	return perr.WrapIf(st.Guard(ctx), perr.ErrorCodeUnavailable, "dependency guard failed")
}
