package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/store"
)

const defaultDeleteConcurrency = 8

// Confirmation is the token a caller obtains after the user agreed to erase a conversation.
type Confirmation struct {
	key conversation.Key
}

// Confirm returns the confirmation for erasing key.
func Confirm(key conversation.Key) Confirmation {
	return Confirmation{key: key}
}

// DeleteResult counts the outcome of a conversation erase.
type DeleteResult struct {
	Key      conversation.Key
	Expected int
	Deleted  int
}

// Complete reports whether every message found was removed.
func (r DeleteResult) Complete() bool {
	return r.Deleted == r.Expected
}

// ConversationStore is what the eraser needs from the message store.
type ConversationStore interface {
	store.Reader
	Delete(ctx context.Context, id string) error
}

// Eraser removes whole conversations, for both participants. The erase is a read followed
// by one delete per message; it is not atomic.
type Eraser struct {
	Store       ConversationStore
	Concurrency int
	Logger      *slog.Logger
}

// DeleteConversation removes every message bearing key. A failure on any message returns
// *PartialDeleteError alongside the counts.
func (e *Eraser) DeleteConversation(ctx context.Context, key conversation.Key, confirm Confirmation) (DeleteResult, error) {
	result := DeleteResult{Key: key}
	if key == "" {
		return result, &ValidationError{Field: "conversation_key", Reason: "no conversation selected"}
	}
	if confirm.key != key {
		return result, &ValidationError{Field: "confirmation", Reason: "deletion not confirmed"}
	}
	if e.Store == nil {
		return result, store.Errorf(store.CodeUnavailable, nil, "messaging unavailable")
	}

	msgs, err := e.Store.Find(ctx, store.Query{ConversationKey: key, Order: store.Ascending})
	if err != nil {
		return result, fmt.Errorf("chat: load conversation %s: %w", key, err)
	}
	result.Expected = len(msgs)

	var (
		mu       sync.Mutex
		failures []DeleteFailure
	)
	var g errgroup.Group
	g.SetLimit(e.concurrency())
	for _, m := range msgs {
		id := m.ID
		g.Go(func() error {
			err := e.Store.Delete(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			// a message already gone was removed by a concurrent erase
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				failures = append(failures, DeleteFailure{MessageID: id, Err: err})
				return nil
			}
			result.Deleted++
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool {
			return failures[i].MessageID < failures[j].MessageID
		})
		if e.Logger != nil {
			e.Logger.Warn("conversation partially deleted", "conversation_key", key, "expected", result.Expected, "deleted", result.Deleted)
		}
		return result, &PartialDeleteError{Key: key, Expected: result.Expected, Deleted: result.Deleted, Failures: failures}
	}
	if e.Logger != nil {
		e.Logger.Info("conversation deleted", "conversation_key", key, "messages", result.Deleted)
	}
	return result, nil
}

func (e *Eraser) concurrency() int {
	if e.Concurrency <= 0 {
		return defaultDeleteConcurrency
	}
	return e.Concurrency
}
