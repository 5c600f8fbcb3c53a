package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/live"
	"direct-messaging/internal/store"
)

const messagesCollection = "messages"

// mongo error codes mapped to permission failures
const (
	codeUnauthorized       = 13
	codeAuthFailed         = 18
	codeDocumentValidation = 121
)

// MessageStore persists messages in a single collection indexed by key and by participant.
type MessageStore struct {
	col   *mongo.Collection
	clock *store.Clock
}

// NewMessageStore ensures the collection indexes; a failure there stops startup
// rather than leaving every thread query on a collection scan.
func NewMessageStore(ctx context.Context, db *mongo.Database) (*MessageStore, error) {
	col := db.Collection(messagesCollection)
	if _, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_key", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "created_at", Value: -1}}},
	}); err != nil {
		return nil, mapError(err, "create message indexes")
	}
	// BSON datetimes carry milliseconds
	return &MessageStore{col: col, clock: store.NewClock(time.Millisecond)}, nil
}

func (s *MessageStore) Find(ctx context.Context, q store.Query) ([]message.Message, error) {
	filter := bson.M{"participants": q.Participant}
	if q.ConversationKey != "" {
		filter = bson.M{"conversation_key": string(q.ConversationKey)}
	}
	dir := 1
	if q.Order == store.Descending {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}})
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapError(err, "find")
	}
	defer cur.Close(ctx)

	out := make([]message.Message, 0)
	for cur.Next(ctx) {
		var doc messageDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, mapError(err, "decode")
		}
		out = append(out, doc.toMessage())
	}
	if err := cur.Err(); err != nil {
		return nil, mapError(err, "find")
	}
	q.Sort(out)
	return out, nil
}

func (s *MessageStore) Insert(ctx context.Context, m message.Message) (message.Message, error) {
	saved := m.Clone()
	saved.ID = uuid.NewString()
	saved.CreatedAt = s.clock.Now()
	if _, err := s.col.InsertOne(ctx, documentOf(saved)); err != nil {
		return message.Message{}, mapError(err, "insert")
	}
	return saved, nil
}

func (s *MessageStore) Delete(ctx context.Context, id string) (message.Message, error) {
	var doc messageDocument
	if err := s.col.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return message.Message{}, mapError(err, "delete")
	}
	return doc.toMessage(), nil
}

type messageDocument struct {
	ID                string    `bson:"_id"`
	Text              string    `bson:"text"`
	CreatedAt         time.Time `bson:"created_at"`
	ConversationKey   string    `bson:"conversation_key"`
	Participants      []string  `bson:"participants"`
	SenderID          string    `bson:"sender_id"`
	RecipientID       string    `bson:"recipient_id"`
	SenderDisplayName string    `bson:"sender_display_name"`
	SenderPhotoURL    string    `bson:"sender_photo_url,omitempty"`
	Status            string    `bson:"status"`
}

func documentOf(m message.Message) messageDocument {
	return messageDocument{
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

func (d messageDocument) toMessage() message.Message {
	return message.Message{
		ID:                d.ID,
		Text:              d.Text,
		CreatedAt:         d.CreatedAt.UTC(),
		ConversationKey:   conversation.Key(d.ConversationKey),
		Participants:      append([]string(nil), d.Participants...),
		SenderID:          d.SenderID,
		RecipientID:       d.RecipientID,
		SenderDisplayName: d.SenderDisplayName,
		SenderPhotoURL:    d.SenderPhotoURL,
		Status:            message.Status(d.Status),
	}
}

func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	code := store.CodeUnknown
	var cmdErr mongo.CommandError
	var writeErr mongo.WriteException
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected),
		mongo.IsTimeout(err), mongo.IsNetworkError(err):
		code = store.CodeUnavailable
	case mongo.IsDuplicateKeyError(err):
		code = store.CodeInvalidArgument
	case errors.As(err, &cmdErr):
		switch cmdErr.Code {
		case codeUnauthorized, codeAuthFailed:
			code = store.CodePermissionDenied
		case codeDocumentValidation:
			code = store.CodeInvalidArgument
		}
	case errors.As(err, &writeErr):
		for _, we := range writeErr.WriteErrors {
			if we.Code == codeDocumentValidation {
				code = store.CodeInvalidArgument
			}
		}
	}
	return store.Errorf(code, err, "mongo: %s", op)
}

var _ live.Backend = (*MessageStore)(nil)
