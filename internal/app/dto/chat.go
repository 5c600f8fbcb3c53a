package dto

import (
	"time"

	"direct-messaging/internal/app/chat"
	"direct-messaging/internal/domain/directory"
	"direct-messaging/internal/domain/message"
)

// Contact is a directory entry the actor can message.
type Contact struct {
	ID       string `json:"id"`
	UID      string `json:"uid,omitempty"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// ContactList is the directory listing.
type ContactList struct {
	Items []Contact `json:"items"`
}

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	ConversationKey      string    `json:"conversation_key"`
	OtherParticipantID   string    `json:"other_participant_id"`
	OtherParticipantName string    `json:"other_participant_name"`
	LastMessageText      string    `json:"last_message_text"`
	LastMessageAt        time.Time `json:"last_message_at"`
}

// ConversationList is the actor's conversation list, newest first.
type ConversationList struct {
	Items []ConversationSummary `json:"items"`
}

// ChatMessage contains a single message payload.
type ChatMessage struct {
	ID                string    `json:"id"`
	ConversationKey   string    `json:"conversation_key"`
	Participants      []string  `json:"participants"`
	SenderID          string    `json:"sender_id"`
	RecipientID       string    `json:"recipient_id"`
	SenderDisplayName string    `json:"sender_display_name"`
	SenderPhotoURL    string    `json:"sender_photo_url"`
	Text              string    `json:"text"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

// ChatMessageList is a thread, oldest first.
type ChatMessageList struct {
	ConversationKey string        `json:"conversation_key"`
	Items           []ChatMessage `json:"items"`
}

// SendMessageRequest is the body of a send.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
}

// DeleteResult reports a conversation erase.
type DeleteResult struct {
	ConversationKey string   `json:"conversation_key"`
	Expected        int      `json:"expected"`
	Deleted         int      `json:"deleted"`
	FailedIDs       []string `json:"failed_ids,omitempty"`
}

func FromEntry(e directory.Entry) Contact {
	return Contact{ID: e.ID, UID: e.UID, Name: e.Label(), PhotoURL: e.PhotoURL}
}

func FromEntries(entries []directory.Entry) ContactList {
	out := ContactList{Items: make([]Contact, 0, len(entries))}
	for _, e := range entries {
		out.Items = append(out.Items, FromEntry(e))
	}
	return out
}

func FromSummaries(summaries []chat.Summary) ConversationList {
	out := ConversationList{Items: make([]ConversationSummary, 0, len(summaries))}
	for _, s := range summaries {
		out.Items = append(out.Items, ConversationSummary{
			ConversationKey:      string(s.ConversationKey),
			OtherParticipantID:   s.OtherParticipantID,
			OtherParticipantName: s.OtherParticipantName,
			LastMessageText:      s.LastMessageText,
			LastMessageAt:        s.LastMessageAt,
		})
	}
	return out
}

func FromMessage(m message.Message) ChatMessage {
	return ChatMessage{
		ID:                m.ID,
		ConversationKey:   string(m.ConversationKey),
		Participants:      append([]string(nil), m.Participants...),
		SenderID:          m.SenderID,
		RecipientID:       m.RecipientID,
		SenderDisplayName: m.SenderDisplayName,
		SenderPhotoURL:    m.SenderPhotoURL,
		Text:              m.Text,
		Status:            string(m.Status),
		CreatedAt:         m.CreatedAt,
	}
}

func FromMessages(key string, msgs []message.Message) ChatMessageList {
	out := ChatMessageList{ConversationKey: key, Items: make([]ChatMessage, 0, len(msgs))}
	for _, m := range msgs {
		out.Items = append(out.Items, FromMessage(m))
	}
	return out
}

func FromDeleteResult(r chat.DeleteResult, failures []chat.DeleteFailure) DeleteResult {
	out := DeleteResult{ConversationKey: string(r.Key), Expected: r.Expected, Deleted: r.Deleted}
	for _, f := range failures {
		out.FailedIDs = append(out.FailedIDs, f.MessageID)
	}
	return out
}
