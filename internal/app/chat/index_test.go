package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"direct-messaging/internal/domain/directory"
	"direct-messaging/internal/domain/message"
)

func TestBuildSummariesKeepsNewestPerConversation(t *testing.T) {
	msgs := []message.Message{
		at(t, "m0", "u1", "u2", "older", 0),
		at(t, "m2", "u3", "u1", "from grace", 2*time.Minute),
		at(t, "m1", "u2", "u1", "newest", time.Minute),
	}
	roster := directory.NewRoster([]directory.Entry{
		{ID: "doc-alan", UID: "u2", DisplayName: "alan"},
		{ID: "doc-grace", UID: "u3", Email: "grace@example.com"},
	})

	got := BuildSummaries("u1", msgs, roster)

	want := []Summary{
		{ConversationKey: k13, OtherParticipantID: "u3", OtherParticipantName: "grace@example.com", LastMessageText: "from grace", LastMessageAt: epoch.Add(2 * time.Minute)},
		{ConversationKey: k12, OtherParticipantID: "u2", OtherParticipantName: "alan", LastMessageText: "newest", LastMessageAt: epoch.Add(time.Minute)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summaries mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSummariesBreaksTimeTiesByID(t *testing.T) {
	msgs := []message.Message{
		at(t, "a", "u1", "u2", "first", 0),
		at(t, "b", "u1", "u2", "second", 0),
	}
	got := BuildSummaries("u1", msgs, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].LastMessageText)
}

func TestBuildSummariesSkipsForeignMessagesAndFallsBack(t *testing.T) {
	msgs := []message.Message{
		at(t, "x", "u2", "u3", "not mine", 0),
		at(t, "y", "u9", "u1", "stranger", time.Second),
	}
	got := BuildSummaries("u1", msgs, directory.Roster{})
	require.Len(t, got, 1)
	assert.Equal(t, "u9", got[0].OtherParticipantID)
	assert.Equal(t, directory.FallbackName, got[0].OtherParticipantName)
}

func TestBuildSummariesDoesNotReorderInput(t *testing.T) {
	msgs := []message.Message{
		at(t, "m0", "u1", "u2", "a", 0),
		at(t, "m1", "u1", "u2", "b", time.Second),
	}
	BuildSummaries("u1", msgs, nil)
	assert.Equal(t, []string{"m0", "m1"}, ids(msgs))
	assert.Empty(t, BuildSummaries("u1", nil, nil))
}

func TestIndexFollowsStore(t *testing.T) {
	st := startLiveStore(t)
	listings := &recorder[Listing]{}
	idx := NewIndex(st, newRegistry(t), listings.add, nil)
	ctx := context.Background()

	require.NoError(t, idx.Start(ctx, "u1"))
	defer idx.Stop()
	assert.Empty(t, idx.Listing().Summaries)

	d := &Dispatcher{Store: st, Directory: newRegistry(t)}
	_, err := d.Send(ctx, alan, "doc-ada", "hello ada")
	require.NoError(t, err)
	_, err = d.Send(ctx, ada, "doc-grace", "hi grace")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(idx.Listing().Summaries) == 2
	}, 2*time.Second, 10*time.Millisecond)

	got := idx.Listing()
	assert.Equal(t, "u1", got.ActorID)
	assert.Equal(t, k13, got.Summaries[0].ConversationKey)
	assert.Equal(t, "grace@example.com", got.Summaries[0].OtherParticipantName)
	assert.Equal(t, "alan", got.Summaries[1].OtherParticipantName)
	assert.NotEmpty(t, listings.all())
}

func TestIndexRejectsInvalidActor(t *testing.T) {
	idx := NewIndex(&fakeSubscriber{}, nil, nil, nil)
	err := idx.Start(context.Background(), "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestIndexStopClearsList(t *testing.T) {
	subs := &fakeSubscriber{}
	idx := NewIndex(subs, nil, nil, nil)
	require.NoError(t, idx.Start(context.Background(), "u1"))
	require.True(t, subs.latest().push(storeSnapshot(at(t, "m1", "u1", "u2", "hey", 0))))
	require.Eventually(t, func() bool { return len(idx.Listing().Summaries) == 1 }, time.Second, 5*time.Millisecond)

	idx.Stop()
	idx.Stop()
	_, open, _ := subs.stats()
	assert.Zero(t, open)
	assert.Empty(t, idx.Listing().Summaries)
	assert.Empty(t, idx.Listing().ActorID)
}

func TestIndexRefreshDirectoryRenames(t *testing.T) {
	subs := &fakeSubscriber{}
	reg := newRegistry(t)
	idx := NewIndex(subs, reg, nil, nil)
	require.NoError(t, idx.Start(context.Background(), "u1"))
	defer idx.Stop()
	require.True(t, subs.latest().push(storeSnapshot(at(t, "m1", "u2", "u1", "hey", 0))))
	require.Eventually(t, func() bool { return len(idx.Listing().Summaries) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "alan", idx.Listing().Summaries[0].OtherParticipantName)

	require.NoError(t, reg.Save(directory.Entry{ID: "doc-alan", UID: "u2", Name: "Alan Turing"}, ""))
	require.NoError(t, idx.RefreshDirectory(context.Background()))
	assert.Equal(t, "Alan Turing", idx.Listing().Summaries[0].OtherParticipantName)
}
