package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/live"
	"direct-messaging/internal/store"
)

// MessageStore keeps messages in memory. Not suitable for production.
type MessageStore struct {
	mu    sync.RWMutex
	byID  map[string]message.Message
	clock *store.Clock
	newID func() string
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		byID:  make(map[string]message.Message),
		clock: store.NewClock(time.Nanosecond),
		newID: uuid.NewString,
	}
}

// WithClock replaces the timestamp source.
func (s *MessageStore) WithClock(clock *store.Clock) *MessageStore {
	s.clock = clock
	return s
}

func (s *MessageStore) Find(ctx context.Context, q store.Query) ([]message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Errorf(store.CodeUnavailable, err, "find")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]message.Message, 0)
	for _, m := range s.byID {
		if q.Matches(m) {
			out = append(out, m.Clone())
		}
	}
	q.Sort(out)
	return out, nil
}

func (s *MessageStore) Insert(ctx context.Context, m message.Message) (message.Message, error) {
	if err := ctx.Err(); err != nil {
		return message.Message{}, store.Errorf(store.CodeUnavailable, err, "insert")
	}
	saved := m.Clone()
	saved.ID = s.newID()
	saved.CreatedAt = s.clock.Now()
	s.mu.Lock()
	s.byID[saved.ID] = saved
	s.mu.Unlock()
	return saved.Clone(), nil
}

func (s *MessageStore) Delete(ctx context.Context, id string) (message.Message, error) {
	if err := ctx.Err(); err != nil {
		return message.Message{}, store.Errorf(store.CodeUnavailable, err, "delete")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return message.Message{}, store.ErrNotFound
	}
	delete(s.byID, id)
	return m, nil
}

// Len returns the number of stored messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

var _ live.Backend = (*MessageStore)(nil)
