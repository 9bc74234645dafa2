// Package partition splits a fetch range into contiguous per-worker blocks
package partition

import (
	perr "feedmirror/internal/platform/errors"
	"feedmirror/internal/services/mirror/domain"
)

// Split divides r into n contiguous ascending blocks whose sizes differ by at most one.
// The first len%n blocks carry the extra id. An empty range yields n empty blocks
func Split(r domain.FetchRange, n int) ([]domain.Partition, error) {
	if n < 1 {
		return nil, perr.Newf(perr.ErrorCodeInvalidArgument, "partition count must be >= 1, got %d", n)
	}
	total := r.Len()
	q, rem := total/int64(n), total%int64(n)

	out := make([]domain.Partition, n)
	next := r.Low
	for i := 0; i < n; i++ {
		size := q
		if int64(i) < rem {
			size++
		}
		out[i] = domain.Partition{
			Worker: i,
			Range:  domain.FetchRange{Low: next, High: next + size - 1},
		}
		next += size
	}
	return out, nil
}
