package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/domain/directory"
	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/store"
)

// Summary is one row of an actor's conversation list.
type Summary struct {
	ConversationKey      conversation.Key
	OtherParticipantID   string
	OtherParticipantName string
	LastMessageText      string
	LastMessageAt        time.Time
}

// BuildSummaries reduces the messages visible to actorID into one summary per conversation,
// newest conversation first. The newest message of each key becomes its summary.
func BuildSummaries(actorID string, msgs []message.Message, roster directory.Roster) []Summary {
	ordered := make([]message.Message, len(msgs))
	copy(ordered, msgs)
	message.SortDescending(ordered)

	seen := make(map[conversation.Key]struct{}, len(ordered))
	out := make([]Summary, 0)
	for _, m := range ordered {
		if !m.HasParticipant(actorID) {
			continue
		}
		if _, ok := seen[m.ConversationKey]; ok {
			continue
		}
		seen[m.ConversationKey] = struct{}{}
		other, _ := m.OtherParticipant(actorID)
		out = append(out, Summary{
			ConversationKey:      m.ConversationKey,
			OtherParticipantID:   other,
			OtherParticipantName: roster.NameOf(other),
			LastMessageText:      m.Text,
			LastMessageAt:        m.CreatedAt,
		})
	}
	return out
}

// Listing is the state of an actor's conversation list.
type Listing struct {
	ActorID   string
	Summaries []Summary
	Err       error
}

// Index keeps an actor's conversation list live. Every snapshot replaces the list.
type Index struct {
	follow    follower
	directory directory.Directory
	onChange  func(Listing)
	logger    *slog.Logger

	// guarded by follow.mu
	actorID   string
	roster    directory.Roster
	latest    []message.Message
	summaries []Summary
	err       error
}

// NewIndex returns a stopped Index. onChange runs under the index lock and must not call
// back into the Index.
func NewIndex(subscriber store.Subscriber, dir directory.Directory, onChange func(Listing), logger *slog.Logger) *Index {
	return &Index{
		follow:    follower{subscriber: subscriber},
		directory: dir,
		onChange:  onChange,
		logger:    logger,
	}
}

// Start loads the directory and subscribes to every message involving actorID.
func (x *Index) Start(ctx context.Context, actorID string) error {
	if err := conversation.ValidateParticipant(actorID); err != nil {
		return &ValidationError{Field: "actor", Reason: "invalid actor id", Err: err}
	}
	roster, err := x.loadRoster(ctx, actorID)
	if err != nil {
		return err
	}
	q := store.Query{Participant: actorID, Order: store.Descending}
	reset := func() {
		x.actorID = actorID
		x.roster = roster
		x.latest = nil
		x.summaries = nil
		x.err = nil
	}
	if err := x.follow.restart(ctx, &q, reset, x.applyLocked); err != nil {
		return &SubscriptionError{Query: q, Err: err}
	}
	return nil
}

// Stop drops the subscription and clears the list.
func (x *Index) Stop() {
	_ = x.follow.restart(context.Background(), nil, func() {
		x.actorID = ""
		x.roster = nil
		x.latest = nil
		x.summaries = nil
		x.err = nil
	}, nil)
}

// RefreshDirectory reloads participant names and rebuilds the list from the last snapshot.
func (x *Index) RefreshDirectory(ctx context.Context) error {
	x.follow.mu.Lock()
	actorID := x.actorID
	x.follow.mu.Unlock()
	if actorID == "" {
		return nil
	}
	roster, err := x.loadRoster(ctx, actorID)
	if err != nil {
		return err
	}
	x.follow.mu.Lock()
	defer x.follow.mu.Unlock()
	if x.actorID != actorID {
		return nil
	}
	x.roster = roster
	x.summaries = BuildSummaries(actorID, x.latest, roster)
	x.emitLocked()
	return nil
}

// Listing returns a copy of the current list.
func (x *Index) Listing() Listing {
	x.follow.mu.Lock()
	defer x.follow.mu.Unlock()
	return x.listingLocked()
}

func (x *Index) loadRoster(ctx context.Context, actorID string) (directory.Roster, error) {
	if x.directory == nil {
		return directory.Roster{}, nil
	}
	entries, err := x.directory.ListOthers(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("chat: load directory: %w", err)
	}
	return directory.NewRoster(entries), nil
}

func (x *Index) applyLocked(snap store.Snapshot) {
	if snap.Err != nil {
		x.err = &SubscriptionError{Query: store.Query{Participant: x.actorID, Order: store.Descending}, Err: snap.Err}
		if x.logger != nil {
			x.logger.Warn("conversation index subscription failed", "actor_id", x.actorID, "error", snap.Err)
		}
		x.emitLocked()
		return
	}
	x.latest = snap.Messages
	x.summaries = BuildSummaries(x.actorID, snap.Messages, x.roster)
	x.err = nil
	x.emitLocked()
}

func (x *Index) listingLocked() Listing {
	return Listing{
		ActorID:   x.actorID,
		Summaries: append([]Summary(nil), x.summaries...),
		Err:       x.err,
	}
}

func (x *Index) emitLocked() {
	if x.onChange != nil {
		x.onChange(x.listingLocked())
	}
}
