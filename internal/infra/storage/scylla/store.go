package scylla

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gocql/gocql"

	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/live"
	"direct-messaging/internal/store"
)

const selectColumns = `message_id, text, created_at, conversation_key, participants, sender_id, recipient_id, sender_display_name, sender_photo_url, status`

var errNoSession = errors.New("scylla session not initialized")

// Store keeps messages in three denormalised tables: by id, by conversation and by participant.
type Store struct {
	session     *gocql.Session
	consistency gocql.Consistency
	clock       *store.Clock
	logger      *slog.Logger
}

// NewStore builds a Store. Reads and writes share one consistency level so a
// refresh after a write sees it; Any (the zero value) falls back to Quorum.
// Timestamps are issued at millisecond resolution, the precision of a CQL timestamp.
func NewStore(session *gocql.Session, consistency gocql.Consistency, logger *slog.Logger) *Store {
	if consistency == gocql.Any {
		consistency = gocql.Quorum
	}
	return &Store{session: session, consistency: consistency, clock: store.NewClock(time.Millisecond), logger: logger}
}

func (s *Store) Find(ctx context.Context, q store.Query) ([]message.Message, error) {
	if s.session == nil {
		return nil, mapError(errNoSession, "find")
	}
	var iter *gocql.Iter
	if q.ConversationKey != "" {
		iter = s.session.
			Query(`SELECT `+selectColumns+` FROM messages_by_conversation WHERE conversation_key = ?`, string(q.ConversationKey)).
			WithContext(ctx).
			Consistency(s.consistency).
			Iter()
	} else {
		iter = s.session.
			Query(`SELECT `+selectColumns+` FROM messages_by_participant WHERE participant_id = ?`, q.Participant).
			WithContext(ctx).
			Consistency(s.consistency).
			Iter()
	}

	out := make([]message.Message, 0)
	var r row
	for iter.Scan(r.dest()...) {
		out = append(out, r.message())
		r = row{}
	}
	if err := iter.Close(); err != nil {
		return nil, mapError(err, "find "+q.String())
	}
	q.Sort(out)
	return out, nil
}

func (s *Store) Insert(ctx context.Context, m message.Message) (message.Message, error) {
	if s.session == nil {
		return message.Message{}, mapError(errNoSession, "insert")
	}
	saved := m.Clone()
	saved.ID = gocql.TimeUUID().String()
	saved.CreatedAt = s.clock.Now()
	r := rowOf(saved)

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.SetConsistency(s.consistency)
	batch.Query(`INSERT INTO messages_by_id (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.values()...)
	batch.Query(`INSERT INTO messages_by_conversation (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.values()...)
	for _, p := range saved.Participants {
		batch.Query(`INSERT INTO messages_by_participant (participant_id, `+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			append([]any{p}, r.values()...)...)
	}
	if err := s.session.ExecuteBatch(batch); err != nil {
		return message.Message{}, mapError(err, "insert")
	}
	return saved, nil
}

func (s *Store) Delete(ctx context.Context, id string) (message.Message, error) {
	if s.session == nil {
		return message.Message{}, mapError(errNoSession, "delete")
	}
	var r row
	if err := s.session.
		Query(`SELECT `+selectColumns+` FROM messages_by_id WHERE message_id = ? LIMIT 1`, id).
		WithContext(ctx).
		Consistency(s.consistency).
		Scan(r.dest()...); err != nil {
		return message.Message{}, mapError(err, "delete "+id)
	}
	m := r.message()

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.SetConsistency(s.consistency)
	batch.Query(`DELETE FROM messages_by_conversation WHERE conversation_key = ? AND created_at = ? AND message_id = ?`,
		r.ConversationKey, r.CreatedAt, r.ID)
	for _, p := range r.Participants {
		batch.Query(`DELETE FROM messages_by_participant WHERE participant_id = ? AND created_at = ? AND message_id = ?`,
			p, r.CreatedAt, r.ID)
	}
	batch.Query(`DELETE FROM messages_by_id WHERE message_id = ?`, r.ID)
	if err := s.session.ExecuteBatch(batch); err != nil {
		return message.Message{}, mapError(err, "delete "+id)
	}
	return m, nil
}

// Ping checks the session with a cheap system query.
func (s *Store) Ping(ctx context.Context) error {
	if s.session == nil {
		return errNoSession
	}
	return s.session.Query(`SELECT release_version FROM system.local`).WithContext(ctx).Exec()
}

// row mirrors the message columns.
type row struct {
	ID                string
	Text              string
	CreatedAt         time.Time
	ConversationKey   string
	Participants      []string
	SenderID          string
	RecipientID       string
	SenderDisplayName string
	SenderPhotoURL    string
	Status            string
}

func rowOf(m message.Message) row {
	return row{
		ID:                m.ID,
		Text:              m.Text,
		CreatedAt:         m.CreatedAt,
		ConversationKey:   string(m.ConversationKey),
		Participants:      append([]string(nil), m.Participants...),
		SenderID:          m.SenderID,
		RecipientID:       m.RecipientID,
		SenderDisplayName: m.SenderDisplayName,
		SenderPhotoURL:    m.SenderPhotoURL,
		Status:            string(m.Status),
	}
}

func (r *row) dest() []any {
	return []any{&r.ID, &r.Text, &r.CreatedAt, &r.ConversationKey, &r.Participants, &r.SenderID, &r.RecipientID, &r.SenderDisplayName, &r.SenderPhotoURL, &r.Status}
}

func (r row) values() []any {
	return []any{r.ID, r.Text, r.CreatedAt, r.ConversationKey, r.Participants, r.SenderID, r.RecipientID, r.SenderDisplayName, r.SenderPhotoURL, r.Status}
}

func (r row) message() message.Message {
	return message.Message{
		ID:                r.ID,
		Text:              r.Text,
		CreatedAt:         r.CreatedAt.UTC(),
		ConversationKey:   conversation.Key(r.ConversationKey),
		Participants:      append([]string(nil), r.Participants...),
		SenderID:          r.SenderID,
		RecipientID:       r.RecipientID,
		SenderDisplayName: r.SenderDisplayName,
		SenderPhotoURL:    r.SenderPhotoURL,
		Status:            message.Status(r.Status),
	}
}

// mapError translates driver failures into store codes.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gocql.ErrNotFound) {
		return store.ErrNotFound
	}
	code := store.CodeUnknown
	var reqErr gocql.RequestError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, gocql.ErrNoConnections), errors.Is(err, gocql.ErrTimeoutNoResponse),
		errors.Is(err, gocql.ErrConnectionClosed), errors.Is(err, gocql.ErrSessionClosed),
		errors.Is(err, errNoSession):
		code = store.CodeUnavailable
	case errors.As(err, &reqErr):
		switch reqErr.Code() {
		case gocql.ErrCodeUnauthorized, gocql.ErrCodeCredentials:
			code = store.CodePermissionDenied
		case gocql.ErrCodeInvalid, gocql.ErrCodeSyntax:
			code = store.CodeInvalidArgument
		case gocql.ErrCodeUnavailable, gocql.ErrCodeOverloaded, gocql.ErrCodeBootstrapping,
			gocql.ErrCodeWriteTimeout, gocql.ErrCodeReadTimeout:
			code = store.CodeUnavailable
		}
	}
	return store.Errorf(code, err, "scylla: %s", op)
}

var _ live.Backend = (*Store)(nil)
