package live

import (
	"context"
	"log/slog"

	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/store"
)

// Backend is a persistent message collection without live capabilities.
// Delete returns the removed record so the change can be announced.
type Backend interface {
	Find(ctx context.Context, q store.Query) ([]message.Message, error)
	Insert(ctx context.Context, m message.Message) (message.Message, error)
	Delete(ctx context.Context, id string) (message.Message, error)
}

// Store adds snapshot subscriptions to a Backend. Writes are announced on the feed and
// the hub re-queries affected subscriptions when the announcement comes back.
type Store struct {
	backend Backend
	feed    Feed
	hub     *Hub
	logger  *slog.Logger
}

func NewStore(backend Backend, feed Feed, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		feed:    feed,
		hub:     NewHub(backend, logger),
		logger:  logger,
	}
}

// Run consumes the feed until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	return s.hub.Run(ctx, s.feed.Changes())
}

func (s *Store) Find(ctx context.Context, q store.Query) ([]message.Message, error) {
	if err := q.Validate(); err != nil {
		return nil, store.Errorf(store.CodeInvalidArgument, err, "find")
	}
	msgs, err := s.backend.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	q.Sort(msgs)
	return msgs, nil
}

func (s *Store) Insert(ctx context.Context, m message.Message) (message.Message, error) {
	if err := m.Validate(); err != nil {
		return message.Message{}, store.Errorf(store.CodeInvalidArgument, err, "insert")
	}
	saved, err := s.backend.Insert(ctx, m)
	if err != nil {
		return message.Message{}, err
	}
	s.announce(ctx, ChangeOf(OpInsert, saved))
	return saved, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return store.Errorf(store.CodeInvalidArgument, nil, "message id is required")
	}
	removed, err := s.backend.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.announce(ctx, ChangeOf(OpDelete, removed))
	return nil
}

func (s *Store) Subscribe(ctx context.Context, q store.Query) (store.Subscription, error) {
	return s.hub.Subscribe(ctx, q)
}

// Subscriptions returns the number of open subscriptions.
func (s *Store) Subscriptions() int {
	return s.hub.Len()
}

// Close ends all subscriptions and the feed.
func (s *Store) Close() error {
	s.hub.Close()
	return s.feed.Close()
}

// announce never fails the write: the record is already persisted.
func (s *Store) announce(ctx context.Context, c Change) {
	if err := s.feed.Publish(ctx, c); err != nil && s.logger != nil {
		s.logger.Warn("change publish failed", "op", c.Op, "message_id", c.MessageID, "conversation_key", c.ConversationKey, "error", err)
	}
}

var _ store.Store = (*Store)(nil)
