package live

import (
	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/store"
)

type Op string

const (
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// Change announces a write to the message collection. A change with neither key nor
// participants is a wildcard and refreshes every subscription.
type Change struct {
	Op              Op               `json:"op"`
	MessageID       string           `json:"message_id,omitempty"`
	ConversationKey conversation.Key `json:"conversation_key,omitempty"`
	Participants    []string         `json:"participants,omitempty"`
}

// ChangeOf describes op applied to m.
func ChangeOf(op Op, m message.Message) Change {
	return Change{
		Op:              op,
		MessageID:       m.ID,
		ConversationKey: m.ConversationKey,
		Participants:    append([]string(nil), m.Participants...),
	}
}

func (c Change) Wildcard() bool {
	return c.ConversationKey == "" && len(c.Participants) == 0
}

// Affects reports whether subscribers of q may observe a different result after c.
func (c Change) Affects(q store.Query) bool {
	if c.Wildcard() {
		return true
	}
	if q.ConversationKey != "" {
		return c.ConversationKey == q.ConversationKey
	}
	for _, p := range c.Participants {
		if p == q.Participant {
			return true
		}
	}
	return c.ConversationKey.Has(q.Participant)
}
