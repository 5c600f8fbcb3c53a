package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/infra/storage/memory"
	"direct-messaging/internal/store"
)

func mustMessage(t *testing.T, from, to, text string) message.Message {
	t.Helper()
	m, err := message.New(message.CreateParams{SenderID: from, RecipientID: to, Text: text})
	require.NoError(t, err)
	return m
}

func TestMessageStoreAssignsIDAndTime(t *testing.T) {
	s := memory.NewMessageStore()
	ctx := context.Background()

	a, err := s.Insert(ctx, mustMessage(t, "u1", "u2", "a"))
	require.NoError(t, err)
	b, err := s.Insert(ctx, mustMessage(t, "u2", "u1", "b"))
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, b.CreatedAt.After(a.CreatedAt))
	assert.Equal(t, 2, s.Len())
}

func TestMessageStoreFindByKeyAndParticipant(t *testing.T) {
	frozen := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := memory.NewMessageStore().WithClock(store.NewClock(time.Millisecond).WithSource(func() time.Time { return frozen }))
	ctx := context.Background()
	for _, m := range []message.Message{
		mustMessage(t, "u1", "u2", "one"),
		mustMessage(t, "u3", "u1", "two"),
		mustMessage(t, "u2", "u3", "three"),
	} {
		_, err := s.Insert(ctx, m)
		require.NoError(t, err)
	}

	byKey, err := s.Find(ctx, store.Query{ConversationKey: "u1_u2"})
	require.NoError(t, err)
	require.Len(t, byKey, 1)
	assert.Equal(t, "one", byKey[0].Text)

	byActor, err := s.Find(ctx, store.Query{Participant: "u1", Order: store.Descending})
	require.NoError(t, err)
	require.Len(t, byActor, 2)
	assert.Equal(t, "two", byActor[0].Text)
	assert.Equal(t, "one", byActor[1].Text)
}

func TestMessageStoreReturnsCopies(t *testing.T) {
	s := memory.NewMessageStore()
	ctx := context.Background()
	_, err := s.Insert(ctx, mustMessage(t, "u1", "u2", "hi"))
	require.NoError(t, err)

	found, err := s.Find(ctx, store.Query{ConversationKey: "u1_u2"})
	require.NoError(t, err)
	found[0].Participants[0] = "mallory"

	again, err := s.Find(ctx, store.Query{ConversationKey: "u1_u2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, again[0].Participants)
}

func TestMessageStoreDelete(t *testing.T) {
	s := memory.NewMessageStore()
	ctx := context.Background()
	saved, err := s.Insert(ctx, mustMessage(t, "u1", "u2", "hi"))
	require.NoError(t, err)

	removed, err := s.Delete(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, removed.ID)
	assert.Zero(t, s.Len())

	_, err = s.Delete(ctx, saved.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMessageStoreHonoursCancelledContext(t *testing.T) {
	s := memory.NewMessageStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Insert(ctx, mustMessage(t, "u1", "u2", "hi"))
	assert.Equal(t, store.CodeUnavailable, store.CodeOf(err))
	assert.Zero(t, s.Len())
}
