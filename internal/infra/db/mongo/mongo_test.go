package mongo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/live"
	"direct-messaging/internal/store"
)

func TestDocumentRoundTrip(t *testing.T) {
	m, err := message.New(message.CreateParams{SenderID: "u1", RecipientID: "u2", Text: "hi", SenderPhotoURL: "https://img/1"})
	require.NoError(t, err)
	m.ID = "m1"
	m.CreatedAt = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	raw, err := bson.Marshal(documentOf(m))
	require.NoError(t, err)
	var doc messageDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, m, doc.toMessage())
}

func TestChangeEventToChange(t *testing.T) {
	insert := changeEvent{
		OperationType: "insert",
		DocumentKey:   documentKey{ID: "m1"},
		FullDocument:  &messageDocument{ID: "m1", ConversationKey: "u1_u2", Participants: []string{"u1", "u2"}},
	}
	c := insert.toChange()
	assert.Equal(t, live.OpInsert, c.Op)
	assert.Equal(t, "m1", c.MessageID)
	assert.True(t, c.Affects(store.Query{Participant: "u2"}))
	assert.False(t, c.Affects(store.Query{ConversationKey: "u1_u3"}))

	del := changeEvent{OperationType: "delete", DocumentKey: documentKey{ID: "m1"}}.toChange()
	assert.Equal(t, live.OpDelete, del.Op)
	assert.True(t, del.Wildcard())
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want store.Code
	}{
		{"no documents", mongo.ErrNoDocuments, store.CodeNotFound},
		{"deadline", fmt.Errorf("op: %w", context.DeadlineExceeded), store.CodeUnavailable},
		{"unauthorized", mongo.CommandError{Code: codeUnauthorized, Message: "not authorized"}, store.CodePermissionDenied},
		{"validation", mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: codeDocumentValidation}}}, store.CodeInvalidArgument},
		{"duplicate", mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}, store.CodeInvalidArgument},
		{"other", errors.New("boom"), store.CodeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, store.CodeOf(mapError(tc.err, "op")))
		})
	}
}

func TestUserDocumentToEntry(t *testing.T) {
	e := userDocument{ID: "doc-ada", UID: "u1", Email: "ada@example.com", Tokens: []string{"t"}}.toEntry()
	assert.Equal(t, "u1", e.UID)
	assert.Equal(t, "ada@example.com", e.Label())
}

func TestConstructorsReportIndexFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI("mongodb://127.0.0.1:1").
		SetServerSelectionTimeout(100*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	db := client.Database("dm_test")

	messages, err := NewMessageStore(ctx, db)
	assert.Error(t, err)
	assert.Nil(t, messages)

	users, err := NewUsers(ctx, db)
	assert.Error(t, err)
	assert.Nil(t, users)
}
