package message

import (
	"errors"
	"sort"
	"strings"
	"time"

	"direct-messaging/internal/domain/conversation"
)

var (
	ErrTextRequired         = errors.New("message: text is required")
	ErrSenderRequired       = errors.New("message: sender is required")
	ErrRecipientRequired    = errors.New("message: recipient is required")
	ErrParticipantsMismatch = errors.New("message: participants must be exactly sender and recipient")
	ErrKeyMismatch          = errors.New("message: conversation key does not match participants")
)

// Status is the delivery state of a message. Only sent is modelled.
type Status string

const StatusSent Status = "sent"

// DefaultDisplayName is used when the sender has no display name.
const DefaultDisplayName = "User"

// Message is an immutable direct message between two participants.
type Message struct {
	ID                string
	Text              string
	CreatedAt         time.Time
	ConversationKey   conversation.Key
	Participants      []string
	SenderID          string
	RecipientID       string
	SenderDisplayName string
	SenderPhotoURL    string
	Status            Status
}

type CreateParams struct {
	SenderID          string
	RecipientID       string
	Text              string
	SenderDisplayName string
	SenderPhotoURL    string
}

// New builds an unsaved message. ID and CreatedAt are assigned by the store.
func New(params CreateParams) (Message, error) {
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return Message{}, ErrTextRequired
	}
	if params.SenderID == "" {
		return Message{}, ErrSenderRequired
	}
	if params.RecipientID == "" {
		return Message{}, ErrRecipientRequired
	}
	key, err := conversation.DeriveKey(params.SenderID, params.RecipientID)
	if err != nil {
		return Message{}, err
	}
	name := strings.TrimSpace(params.SenderDisplayName)
	if name == "" {
		name = DefaultDisplayName
	}
	return Message{
		Text:              text,
		ConversationKey:   key,
		Participants:      []string{params.SenderID, params.RecipientID},
		SenderID:          params.SenderID,
		RecipientID:       params.RecipientID,
		SenderDisplayName: name,
		SenderPhotoURL:    strings.TrimSpace(params.SenderPhotoURL),
		Status:            StatusSent,
	}, nil
}

// Validate checks the invariants a store relies on before persisting m.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Text) == "" {
		return ErrTextRequired
	}
	if m.SenderID == "" {
		return ErrSenderRequired
	}
	if m.RecipientID == "" {
		return ErrRecipientRequired
	}
	if len(m.Participants) != 2 || !m.HasParticipant(m.SenderID) || !m.HasParticipant(m.RecipientID) {
		return ErrParticipantsMismatch
	}
	key, err := conversation.DeriveKey(m.SenderID, m.RecipientID)
	if err != nil {
		return err
	}
	if key != m.ConversationKey {
		return ErrKeyMismatch
	}
	return nil
}

// HasParticipant reports whether id is one of the two participants.
func (m Message) HasParticipant(id string) bool {
	for _, p := range m.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not id.
func (m Message) OtherParticipant(id string) (string, bool) {
	for _, p := range m.Participants {
		if p != id {
			return p, true
		}
	}
	return "", false
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	out := m
	out.Participants = append([]string(nil), m.Participants...)
	return out
}

// Before orders messages by creation time, then by id.
func Before(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortAscending orders msgs oldest first in place.
func SortAscending(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return Before(msgs[i], msgs[j])
	})
}

// SortDescending orders msgs newest first in place.
func SortDescending(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return Before(msgs[j], msgs[i])
	})
}
