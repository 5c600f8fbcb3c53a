package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/domain/directory"
	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/store"
)

var ErrNotParticipant = errors.New("chat: actor is not a participant of the conversation")

// Service bundles the chat operations used by the transport layers.
type Service struct {
	Store      store.Store
	Directory  directory.Directory
	Dispatcher *Dispatcher
	Eraser     *Eraser
	Logger     *slog.Logger
}

// NewService wires a Dispatcher and an Eraser over st.
func NewService(st store.Store, dir directory.Directory, deleteConcurrency int, logger *slog.Logger) *Service {
	return &Service{
		Store:      st,
		Directory:  dir,
		Dispatcher: &Dispatcher{Store: st, Directory: dir, Logger: logger},
		Eraser:     &Eraser{Store: st, Concurrency: deleteConcurrency, Logger: logger},
		Logger:     logger,
	}
}

// Contacts lists everyone actor can start a conversation with.
func (s *Service) Contacts(ctx context.Context, actor directory.Actor) ([]directory.Entry, error) {
	return s.Directory.ListOthers(ctx, actor.ID)
}

// Conversations builds actor's conversation list once.
func (s *Service) Conversations(ctx context.Context, actor directory.Actor) ([]Summary, error) {
	if err := conversation.ValidateParticipant(actor.ID); err != nil {
		return nil, &ValidationError{Field: "actor", Reason: "invalid actor id", Err: err}
	}
	entries, err := s.Directory.ListOthers(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("chat: load directory: %w", err)
	}
	msgs, err := s.Store.Find(ctx, store.Query{Participant: actor.ID, Order: store.Descending})
	if err != nil {
		return nil, err
	}
	return BuildSummaries(actor.ID, msgs, directory.NewRoster(entries)), nil
}

// Messages returns the thread for key, oldest first. actor must be a participant.
func (s *Service) Messages(ctx context.Context, actor directory.Actor, key conversation.Key) ([]message.Message, error) {
	if err := s.authorize(actor, key); err != nil {
		return nil, err
	}
	msgs, err := s.Store.Find(ctx, store.Query{ConversationKey: key, Order: store.Ascending})
	if err != nil {
		return nil, err
	}
	message.SortAscending(msgs)
	return msgs, nil
}

// Send delivers text from actor to the directory entry recipientID.
func (s *Service) Send(ctx context.Context, actor directory.Actor, recipientID, text string) (message.Message, error) {
	return s.Dispatcher.Send(ctx, actor, recipientID, text)
}

// DeleteConversation erases key for both participants. actor must be a participant.
func (s *Service) DeleteConversation(ctx context.Context, actor directory.Actor, key conversation.Key, confirm Confirmation) (DeleteResult, error) {
	if err := s.authorize(actor, key); err != nil {
		return DeleteResult{Key: key}, err
	}
	return s.Eraser.DeleteConversation(ctx, key, confirm)
}

// NewSession opens a live session for actor.
func (s *Service) NewSession(actor directory.Actor, observers Observers) *Session {
	return NewSession(actor, s, observers)
}

func (s *Service) authorize(actor directory.Actor, key conversation.Key) error {
	if _, _, err := key.Participants(); err != nil {
		return &ValidationError{Field: "conversation_key", Reason: "malformed key", Err: err}
	}
	if !key.Has(actor.ID) {
		return ErrNotParticipant
	}
	return nil
}
