package live

import (
	"context"
	"errors"
	"sync"
)

var ErrFeedClosed = errors.New("live: feed closed")

// Feed carries change notifications from writers to the hub.
type Feed interface {
	Publish(ctx context.Context, c Change) error
	Changes() <-chan Change
	Close() error
}

// LocalFeed delivers changes inside a single process.
type LocalFeed struct {
	mu     sync.RWMutex
	ch     chan Change
	closed bool
}

func NewLocalFeed(buffer int) *LocalFeed {
	if buffer <= 0 {
		buffer = 256
	}
	return &LocalFeed{ch: make(chan Change, buffer)}
}

func (f *LocalFeed) Publish(ctx context.Context, c Change) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrFeedClosed
	}
	select {
	case f.ch <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *LocalFeed) Changes() <-chan Change {
	return f.ch
}

func (f *LocalFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.ch)
	return nil
}
