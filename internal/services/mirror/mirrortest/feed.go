package mirrortest

import (
	"context"
	"sync"
)

// Feed is an in-memory item feed
type Feed struct {
	mu     sync.Mutex
	Max    int64
	MaxErr error
	items  map[int64]string
	errs   map[int64]error
	calls  map[int64]int
}

// NewFeed returns a feed reporting max as its newest id
func NewFeed(max int64) *Feed {
	return &Feed{Max: max, items: map[int64]string{}, errs: map[int64]error{}, calls: map[int64]int{}}
}

// Put publishes doc under id
func (f *Feed) Put(id int64, doc string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id] = doc
}

// FailItem makes every request for id fail with err
func (f *Feed) FailItem(id int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = err
}

// Calls returns how many times id was requested
func (f *Feed) Calls(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// MaxItemID implements domain.FeedClient
func (f *Feed) MaxItemID(context.Context) (int64, error) {
	if f.MaxErr != nil {
		return 0, f.MaxErr
	}
	return f.Max, nil
}

// Item implements domain.FeedClient; unknown ids come back as null
func (f *Feed) Item(ctx context.Context, id int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	doc, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	return []byte(doc), nil
}
