package store

import (
	"context"
	"errors"
	"fmt"

	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/domain/message"
)

// Order is the createdAt ordering of a query result.
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// Query selects messages either by conversation key or by participant. Exactly one must be set.
type Query struct {
	ConversationKey conversation.Key
	Participant     string
	Order           Order
}

var ErrInvalidQuery = errors.New("store: query needs exactly one of conversation key or participant")

// Validate reports whether q can be executed.
func (q Query) Validate() error {
	if (q.ConversationKey == "") == (q.Participant == "") {
		return ErrInvalidQuery
	}
	return nil
}

// Matches reports whether m belongs to the result set of q.
func (q Query) Matches(m message.Message) bool {
	if q.ConversationKey != "" {
		return m.ConversationKey == q.ConversationKey
	}
	return m.HasParticipant(q.Participant)
}

// Sort orders msgs in place according to q.Order.
func (q Query) Sort(msgs []message.Message) {
	if q.Order == Descending {
		message.SortDescending(msgs)
		return
	}
	message.SortAscending(msgs)
}

func (q Query) String() string {
	if q.ConversationKey != "" {
		return fmt.Sprintf("conversation_key=%s order=%s", q.ConversationKey, q.Order)
	}
	return fmt.Sprintf("participant=%s order=%s", q.Participant, q.Order)
}

// Snapshot is the full ordered result of a subscription at one point in time.
// A snapshot with a non-nil Err is the last one delivered on its subscription.
type Snapshot struct {
	Messages []message.Message
	Err      error
}

// Subscription delivers snapshots until closed. Updates is closed after Close or after an error snapshot.
type Subscription interface {
	Updates() <-chan Snapshot
	Close() error
}

// Reader runs one-shot queries.
type Reader interface {
	Find(ctx context.Context, q Query) ([]message.Message, error)
}

// Writer creates and removes individual messages.
type Writer interface {
	Insert(ctx context.Context, m message.Message) (message.Message, error)
	Delete(ctx context.Context, id string) error
}

// Subscriber opens live subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, q Query) (Subscription, error)
}

// Store is the message store consumed by the chat core.
type Store interface {
	Reader
	Writer
	Subscriber
}
