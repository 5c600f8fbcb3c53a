package live_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/infra/storage/memory"
	"direct-messaging/internal/live"
	"direct-messaging/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newMessage(t *testing.T, from, to, text string) message.Message {
	t.Helper()
	m, err := message.New(message.CreateParams{SenderID: from, RecipientID: to, Text: text})
	require.NoError(t, err)
	return m
}

func startStore(t *testing.T) *live.Store {
	t.Helper()
	st := live.NewStore(memory.NewMessageStore(), live.NewLocalFeed(16), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = st.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = st.Close()
	})
	return st
}

func next(t *testing.T, sub store.Subscription) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
		return store.Snapshot{}
	}
}

func texts(msgs []message.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	st := startStore(t)
	ctx := context.Background()
	_, err := st.Insert(ctx, newMessage(t, "u1", "u2", "first"))
	require.NoError(t, err)

	sub, err := st.Subscribe(ctx, store.Query{ConversationKey: "u1_u2"})
	require.NoError(t, err)
	defer sub.Close()

	snap := next(t, sub)
	require.NoError(t, snap.Err)
	assert.Equal(t, []string{"first"}, texts(snap.Messages))
}

func TestSubscriptionReceivesFullSnapshotOnEveryChange(t *testing.T) {
	st := startStore(t)
	ctx := context.Background()

	sub, err := st.Subscribe(ctx, store.Query{Participant: "u1", Order: store.Descending})
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, next(t, sub).Messages)

	_, err = st.Insert(ctx, newMessage(t, "u1", "u2", "one"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, texts(next(t, sub).Messages))

	_, err = st.Insert(ctx, newMessage(t, "u3", "u1", "two"))
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "one"}, texts(next(t, sub).Messages))
}

func TestSubscriptionSeesDeletes(t *testing.T) {
	st := startStore(t)
	ctx := context.Background()
	saved, err := st.Insert(ctx, newMessage(t, "u1", "u2", "bye"))
	require.NoError(t, err)

	sub, err := st.Subscribe(ctx, store.Query{ConversationKey: saved.ConversationKey})
	require.NoError(t, err)
	defer sub.Close()
	require.Len(t, next(t, sub).Messages, 1)

	require.NoError(t, st.Delete(ctx, saved.ID))
	assert.Empty(t, next(t, sub).Messages)
}

func TestUnaffectedSubscriptionIsNotRefreshed(t *testing.T) {
	hub := live.NewHub(memory.NewMessageStore(), nil)
	defer hub.Close()
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, store.Query{ConversationKey: "u1_u2"})
	require.NoError(t, err)
	next(t, sub)

	hub.Notify(ctx, live.Change{Op: live.OpInsert, ConversationKey: "u3_u4", Participants: []string{"u3", "u4"}})
	select {
	case snap := <-sub.Updates():
		t.Fatalf("unexpected snapshot %+v", snap)
	default:
	}

	hub.Notify(ctx, live.Change{Op: live.OpDelete})
	next(t, sub)
}

func TestPendingSnapshotIsReplacedByNewerOne(t *testing.T) {
	backend := memory.NewMessageStore()
	hub := live.NewHub(backend, nil)
	defer hub.Close()
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, store.Query{ConversationKey: "u1_u2"})
	require.NoError(t, err)

	for _, text := range []string{"a", "b", "c"} {
		saved, err := backend.Insert(ctx, newMessage(t, "u1", "u2", text))
		require.NoError(t, err)
		hub.Notify(ctx, live.ChangeOf(live.OpInsert, saved))
	}
	assert.Equal(t, []string{"a", "b", "c"}, texts(next(t, sub).Messages))
}

func TestClosedFeedFailsSubscriptions(t *testing.T) {
	hub := live.NewHub(memory.NewMessageStore(), nil)
	defer hub.Close()
	sub, err := hub.Subscribe(context.Background(), store.Query{Participant: "u1"})
	require.NoError(t, err)
	next(t, sub)

	changes := make(chan live.Change)
	close(changes)
	err = hub.Run(context.Background(), changes)
	assert.ErrorIs(t, err, live.ErrFeedClosed)

	snap := next(t, sub)
	assert.Equal(t, store.CodeUnavailable, store.CodeOf(snap.Err))
	_, ok := <-sub.Updates()
	assert.False(t, ok)
	assert.Zero(t, hub.Len())
}

func TestCancelledContextClosesSubscription(t *testing.T) {
	hub := live.NewHub(memory.NewMessageStore(), nil)
	defer hub.Close()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := hub.Subscribe(ctx, store.Query{Participant: "u1"})
	require.NoError(t, err)
	next(t, sub)
	cancel()

	assert.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 10*time.Millisecond)
	_, ok := <-sub.Updates()
	assert.False(t, ok)
}

type failingReader struct{}

func (failingReader) Find(context.Context, store.Query) ([]message.Message, error) {
	return nil, store.Errorf(store.CodePermissionDenied, errors.New("denied"), "find")
}

func TestSubscribeSurfacesQueryError(t *testing.T) {
	hub := live.NewHub(failingReader{}, nil)
	defer hub.Close()
	_, err := hub.Subscribe(context.Background(), store.Query{Participant: "u1"})
	assert.Equal(t, store.CodePermissionDenied, store.CodeOf(err))
	assert.Zero(t, hub.Len())
}

func TestSubscribeRejectsInvalidQuery(t *testing.T) {
	hub := live.NewHub(memory.NewMessageStore(), nil)
	defer hub.Close()
	_, err := hub.Subscribe(context.Background(), store.Query{})
	assert.Equal(t, store.CodeInvalidArgument, store.CodeOf(err))
}

func TestChangeAffects(t *testing.T) {
	c := live.Change{Op: live.OpInsert, ConversationKey: "u1_u2", Participants: []string{"u1", "u2"}}
	assert.True(t, c.Affects(store.Query{ConversationKey: "u1_u2"}))
	assert.False(t, c.Affects(store.Query{ConversationKey: "u1_u3"}))
	assert.True(t, c.Affects(store.Query{Participant: "u2"}))
	assert.False(t, c.Affects(store.Query{Participant: "u3"}))

	keyOnly := live.Change{Op: live.OpDelete, ConversationKey: "u1_u2"}
	assert.True(t, keyOnly.Affects(store.Query{Participant: "u1"}))
	assert.True(t, live.Change{Op: live.OpDelete}.Affects(store.Query{Participant: "u9"}))
}
