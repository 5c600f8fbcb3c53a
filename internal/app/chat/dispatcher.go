package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"direct-messaging/internal/domain/directory"
	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/store"
)

// Dispatcher validates and submits new messages.
type Dispatcher struct {
	Store     store.Writer
	Directory directory.Directory
	Logger    *slog.Logger
}

// Send writes text from actor to the directory entry recipientID. Validation failures return
// *ValidationError without touching the store; store failures return *DispatchError.
func (d *Dispatcher) Send(ctx context.Context, actor directory.Actor, recipientID, text string) (message.Message, error) {
	if strings.TrimSpace(text) == "" {
		return message.Message{}, &ValidationError{Field: "text", Reason: "message is empty", Err: message.ErrTextRequired}
	}
	if actor.ID == "" {
		return message.Message{}, &ValidationError{Field: "actor", Reason: "not signed in", Err: message.ErrSenderRequired}
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return message.Message{}, &ValidationError{Field: "recipient", Reason: "no recipient selected", Err: message.ErrRecipientRequired}
	}
	if d.Store == nil || d.Directory == nil {
		return message.Message{}, &DispatchError{Code: store.CodeUnavailable, Message: "messaging unavailable"}
	}

	recipient, err := d.Directory.ByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return message.Message{}, &ValidationError{Field: "recipient", Reason: "unknown recipient", Err: err}
		}
		return message.Message{}, fmt.Errorf("chat: resolve recipient %s: %w", recipientID, err)
	}
	if recipient.UID == "" {
		return message.Message{}, &ValidationError{Field: "recipient", Reason: "recipient has no identity", Err: directory.ErrUIDRequired}
	}

	draft, err := message.New(message.CreateParams{
		SenderID:          actor.ID,
		RecipientID:       recipient.UID,
		Text:              text,
		SenderDisplayName: actor.DisplayName,
		SenderPhotoURL:    actor.PhotoURL,
	})
	if err != nil {
		return message.Message{}, &ValidationError{Field: "recipient", Reason: err.Error(), Err: err}
	}

	saved, err := d.Store.Insert(ctx, draft)
	if err != nil {
		if d.Logger != nil {
			d.Logger.Error("message insert failed", "actor_id", actor.ID, "recipient_id", recipient.UID, "conversation_key", draft.ConversationKey, "error", err)
		}
		return message.Message{}, newDispatchError(err)
	}
	if d.Logger != nil {
		d.Logger.Info("message sent", "message_id", saved.ID, "conversation_key", saved.ConversationKey, "actor_id", actor.ID)
	}
	return saved, nil
}
