package chat

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/store"
)

func conversationOf(t *testing.T, n int) []message.Message {
	t.Helper()
	out := make([]message.Message, 0, n)
	for i, id := range seq("m", n) {
		out = append(out, at(t, id, "u1", "u2", "msg", time.Duration(i)*time.Second))
	}
	return out
}

func TestEraserDeletesEveryMessageOnce(t *testing.T) {
	msgs := conversationOf(t, 20)
	other := at(t, "keep", "u1", "u3", "keep me", 0)
	cs := newConversationStore(append(msgs, other)...)
	e := &Eraser{Store: cs, Concurrency: 4}

	res, err := e.DeleteConversation(context.Background(), k12, Confirm(k12))
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, 20, res.Expected)
	assert.Equal(t, 20, res.Deleted)

	got := cs.deleted()
	sort.Strings(got)
	assert.Equal(t, ids(msgs), got)

	left, err := cs.Find(context.Background(), store.Query{Participant: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, ids(left))
}

func TestEraserReportsPartialFailure(t *testing.T) {
	msgs := conversationOf(t, 5)
	cs := newConversationStore(msgs...)
	denied := store.Errorf(store.CodePermissionDenied, nil, "denied")
	cs.failOn["m01"] = denied
	cs.failOn["m03"] = store.Errorf(store.CodeUnavailable, nil, "timeout")
	e := &Eraser{Store: cs}

	res, err := e.DeleteConversation(context.Background(), k12, Confirm(k12))
	var perr *PartialDeleteError
	require.ErrorAs(t, err, &perr)
	assert.False(t, res.Complete())
	assert.Equal(t, 5, perr.Expected)
	assert.Equal(t, 3, perr.Deleted)
	require.Len(t, perr.Failures, 2)
	assert.Equal(t, "m01", perr.Failures[0].MessageID)
	assert.Equal(t, "m03", perr.Failures[1].MessageID)
	assert.ErrorIs(t, err, denied)
	assert.Len(t, cs.deleted(), 5)
}

func TestEraserCountsAlreadyDeletedAsRemoved(t *testing.T) {
	msgs := conversationOf(t, 3)
	cs := newConversationStore(msgs...)
	cs.failOn["m02"] = store.ErrNotFound

	res, err := (&Eraser{Store: cs}).DeleteConversation(context.Background(), k12, Confirm(k12))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Deleted)
}

func TestEraserRequiresMatchingConfirmation(t *testing.T) {
	cs := newConversationStore(conversationOf(t, 2)...)
	e := &Eraser{Store: cs}
	ctx := context.Background()

	for name, confirm := range map[string]Confirmation{
		"missing":   {},
		"other key": Confirm(k13),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.DeleteConversation(ctx, k12, confirm)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "confirmation", verr.Field)
		})
	}
	_, err := e.DeleteConversation(ctx, "", Confirm(""))
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Empty(t, cs.deleted())
}

func TestEraserEmptyConversation(t *testing.T) {
	res, err := (&Eraser{Store: newConversationStore()}).DeleteConversation(context.Background(), k12, Confirm(k12))
	require.NoError(t, err)
	assert.Zero(t, res.Expected)
	assert.True(t, res.Complete())
}

func TestEraserQueryFailure(t *testing.T) {
	cs := newConversationStore()
	cs.findErr = errors.New("offline")
	_, err := (&Eraser{Store: cs}).DeleteConversation(context.Background(), k12, Confirm(k12))
	assert.ErrorIs(t, err, cs.findErr)
	assert.Empty(t, cs.deleted())
}
