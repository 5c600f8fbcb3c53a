package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"direct-messaging/internal/store"
)

var ErrHubClosed = errors.New("live: hub closed")

// Hub turns change notifications into full snapshots by re-running each affected
// subscription's query against the reader.
type Hub struct {
	reader store.Reader
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

func NewHub(reader store.Reader, logger *slog.Logger) *Hub {
	return &Hub{
		reader: reader,
		logger: logger,
		subs:   make(map[*subscription]struct{}),
	}
}

// Subscribe registers q and delivers its first snapshot before returning.
// The subscription ends when ctx is done or Close is called.
func (h *Hub) Subscribe(ctx context.Context, q store.Query) (store.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, store.Errorf(store.CodeInvalidArgument, err, "subscribe")
	}
	sub := &subscription{
		hub:     h,
		query:   q,
		updates: make(chan store.Snapshot, 1),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, store.Errorf(store.CodeUnavailable, ErrHubClosed, "subscribe")
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	if err := sub.load(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = sub.Close()
	})
	sub.mu.Lock()
	if sub.closed {
		stop()
	} else {
		sub.stopWatch = stop
	}
	sub.mu.Unlock()
	if h.logger != nil {
		h.logger.Debug("subscription opened", "query", q.String())
	}
	return sub, nil
}

// Run applies changes until ctx is done or the channel is closed. A closed channel
// fails every open subscription.
func (h *Hub) Run(ctx context.Context, changes <-chan Change) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				h.failAll(store.Errorf(store.CodeUnavailable, ErrFeedClosed, "change feed ended"))
				return ErrFeedClosed
			}
			h.Notify(ctx, c)
		}
	}
}

// Notify refreshes every subscription affected by c.
func (h *Hub) Notify(ctx context.Context, c Change) {
	for _, sub := range h.affected(c) {
		sub.refresh(ctx)
	}
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later Subscribe calls fail.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Close()
	}
}

func (h *Hub) affected(c Change) []*subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*subscription, 0, len(h.subs))
	for sub := range h.subs {
		if c.Affects(sub.query) {
			out = append(out, sub)
		}
	}
	return out
}

func (h *Hub) failAll(err error) {
	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		sub.fail(err)
	}
}

func (h *Hub) remove(sub *subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// subscription holds at most one pending snapshot; a newer snapshot replaces an unread one.
type subscription struct {
	hub       *Hub
	query     store.Query
	updates   chan store.Snapshot
	stopWatch func() bool

	mu     sync.Mutex
	closed bool
}

func (s *subscription) Updates() <-chan store.Snapshot {
	return s.updates
}

func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *subscription) load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, err := s.hub.reader.Find(ctx, s.query)
	if err != nil {
		return err
	}
	s.query.Sort(msgs)
	s.offerLocked(store.Snapshot{Messages: msgs})
	return nil
}

func (s *subscription) refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	msgs, err := s.hub.reader.Find(ctx, s.query)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if s.hub.logger != nil {
			s.hub.logger.Warn("subscription refresh failed", "query", s.query.String(), "error", err)
		}
		s.offerLocked(store.Snapshot{Err: err})
		s.closeLocked()
		return
	}
	s.query.Sort(msgs)
	s.offerLocked(store.Snapshot{Messages: msgs})
}

func (s *subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.offerLocked(store.Snapshot{Err: err})
	s.closeLocked()
}

func (s *subscription) offerLocked(snap store.Snapshot) {
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snap
}

func (s *subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	if s.stopWatch != nil {
		s.stopWatch()
	}
	close(s.updates)
	s.hub.remove(s)
}
