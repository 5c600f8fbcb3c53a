package chat

import (
	"context"
	"errors"
	"sync"

	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/domain/directory"
	"direct-messaging/internal/domain/message"
)

// Observers receive live updates of a session. Both run under component locks and must
// not call back into the Session.
type Observers struct {
	OnListing func(Listing)
	OnView    func(View)
}

// Session is the state of one signed-in actor: the conversation list, the selected
// recipient with its thread, and the unsent draft.
type Session struct {
	actor   directory.Actor
	service *Service
	index   *Index
	thread  *Thread

	mu        sync.Mutex
	recipient directory.Entry
	key       conversation.Key
	draft     string
}

func NewSession(actor directory.Actor, service *Service, observers Observers) *Session {
	return &Session{
		actor:   actor,
		service: service,
		index:   NewIndex(service.Store, service.Directory, observers.OnListing, service.Logger),
		thread:  NewThread(service.Store, observers.OnView, service.Logger),
	}
}

// Actor returns the signed-in actor.
func (s *Session) Actor() directory.Actor {
	return s.actor
}

// Start begins following the actor's conversation list.
func (s *Session) Start(ctx context.Context) error {
	return s.index.Start(ctx, s.actor.ID)
}

// SelectRecipient opens the thread with the directory entry recipientID. An empty id
// closes the thread.
func (s *Session) SelectRecipient(ctx context.Context, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if recipientID == "" {
		s.recipient = directory.Entry{}
		s.key = ""
		return s.thread.Select(ctx, "")
	}
	entry, err := s.service.Directory.ByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return &ValidationError{Field: "recipient", Reason: "unknown recipient", Err: err}
		}
		return err
	}
	if entry.UID == "" {
		return &ValidationError{Field: "recipient", Reason: "recipient has no identity", Err: directory.ErrUIDRequired}
	}
	key, err := conversation.DeriveKey(s.actor.ID, entry.UID)
	if err != nil {
		return &ValidationError{Field: "recipient", Reason: err.Error(), Err: err}
	}
	s.recipient = entry
	s.key = key
	return s.thread.Select(ctx, key)
}

// SelectParticipant opens the thread with the participant uid, as listed in a Summary.
func (s *Session) SelectParticipant(ctx context.Context, uid string) error {
	entries, err := s.service.Directory.ListOthers(ctx, s.actor.ID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.UID == uid {
			return s.SelectRecipient(ctx, e.ID)
		}
	}
	return s.SelectRecipient(ctx, "")
}

// Selected returns the selected recipient and conversation key.
func (s *Session) Selected() (directory.Entry, conversation.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipient, s.key
}

// SetDraft replaces the pending input.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

// Draft returns the pending input.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Send submits the draft to the selected recipient. The draft is cleared only on success.
func (s *Session) Send(ctx context.Context) (message.Message, error) {
	s.mu.Lock()
	recipientID := s.recipient.ID
	draft := s.draft
	s.mu.Unlock()

	saved, err := s.service.Dispatcher.Send(ctx, s.actor, recipientID, draft)
	if err != nil {
		return message.Message{}, err
	}
	s.mu.Lock()
	if s.draft == draft {
		s.draft = ""
	}
	s.mu.Unlock()
	return saved, nil
}

// DeleteConversation erases the selected conversation.
func (s *Session) DeleteConversation(ctx context.Context, confirm Confirmation) (DeleteResult, error) {
	s.mu.Lock()
	key := s.key
	s.mu.Unlock()
	if key == "" {
		return DeleteResult{}, &ValidationError{Field: "conversation_key", Reason: "no conversation selected"}
	}
	return s.service.DeleteConversation(ctx, s.actor, key, confirm)
}

// RefreshDirectory reloads participant names for the conversation list.
func (s *Session) RefreshDirectory(ctx context.Context) error {
	return s.index.RefreshDirectory(ctx)
}

// Listing returns the current conversation list.
func (s *Session) Listing() Listing {
	return s.index.Listing()
}

// View returns the current thread.
func (s *Session) View() View {
	return s.thread.View()
}

// Close cancels every subscription held by the session.
func (s *Session) Close() {
	s.thread.Close()
	s.index.Stop()
}
