package chat

import (
	"context"
	"log/slog"

	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/store"
)

// View is the state of an open thread.
type View struct {
	Key      conversation.Key
	Messages []message.Message
	Err      error
}

// Thread keeps the ordered message log of the selected conversation in sync with the store.
type Thread struct {
	follow follower
	onView func(View)
	logger *slog.Logger

	// guarded by follow.mu
	key      conversation.Key
	messages []message.Message
	err      error
}

// NewThread returns a Thread with no conversation selected. onView, if set, is called with
// every new view; it runs under the thread's lock and must not call back into the Thread.
func NewThread(subscriber store.Subscriber, onView func(View), logger *slog.Logger) *Thread {
	return &Thread{
		follow: follower{subscriber: subscriber},
		onView: onView,
		logger: logger,
	}
}

// Select switches the thread to key. The previous subscription is closed first; an empty
// key clears the view and holds no subscription.
func (t *Thread) Select(ctx context.Context, key conversation.Key) error {
	if key != "" {
		if _, _, err := key.Participants(); err != nil {
			return &ValidationError{Field: "conversation_key", Reason: "malformed key", Err: err}
		}
	}

	t.follow.mu.Lock()
	unchanged := key == t.key && (key == "" || t.follow.runningLocked())
	t.follow.mu.Unlock()
	if unchanged {
		return nil
	}

	var q *store.Query
	if key != "" {
		q = &store.Query{ConversationKey: key, Order: store.Ascending}
	}
	reset := func() {
		t.key = key
		t.messages = nil
		t.err = nil
		t.emitLocked()
	}
	err := t.follow.restart(ctx, q, reset, t.applyLocked)
	if err != nil {
		return &SubscriptionError{Query: *q, Err: err}
	}
	if t.logger != nil {
		t.logger.Debug("thread selected", "conversation_key", key)
	}
	return nil
}

// Close drops the subscription, e.g. on sign-out.
func (t *Thread) Close() {
	_ = t.Select(context.Background(), "")
}

// View returns a copy of the current state.
func (t *Thread) View() View {
	t.follow.mu.Lock()
	defer t.follow.mu.Unlock()
	return t.viewLocked()
}

func (t *Thread) applyLocked(snap store.Snapshot) {
	if snap.Err != nil {
		t.err = &SubscriptionError{Query: store.Query{ConversationKey: t.key, Order: store.Ascending}, Err: snap.Err}
		if t.logger != nil {
			t.logger.Warn("thread subscription failed", "conversation_key", t.key, "error", snap.Err)
		}
		t.emitLocked()
		return
	}
	msgs := make([]message.Message, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		if m.ConversationKey == t.key {
			msgs = append(msgs, m.Clone())
		}
	}
	// delivery order is not trusted
	message.SortAscending(msgs)
	t.messages = msgs
	t.err = nil
	t.emitLocked()
}

func (t *Thread) viewLocked() View {
	msgs := make([]message.Message, len(t.messages))
	for i, m := range t.messages {
		msgs[i] = m.Clone()
	}
	return View{Key: t.key, Messages: msgs, Err: t.err}
}

func (t *Thread) emitLocked() {
	if t.onView != nil {
		t.onView(t.viewLocked())
	}
}
