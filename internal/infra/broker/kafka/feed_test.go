package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"direct-messaging/internal/live"
)

func TestPublishEncodesChangeKeyedByConversation(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	var sent live.Change
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		return json.Unmarshal(val, &sent)
	})
	f := newChangeFeed(NewProducerWith(sp), "dm.changes", nil)

	c := live.Change{Op: live.OpInsert, MessageID: "m1", ConversationKey: "u1_u2", Participants: []string{"u1", "u2"}}
	require.NoError(t, f.Publish(context.Background(), c))
	assert.Equal(t, c, sent)
	require.NoError(t, f.Close())
}

func TestPublishFailureIsReturned(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	f := newChangeFeed(NewProducerWith(sp), "dm.changes", nil)

	err := f.Publish(context.Background(), live.Change{Op: live.OpDelete, MessageID: "m1"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, f.Close())
}

func TestHandleDeliversDecodedChange(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	f := newChangeFeed(NewProducerWith(sp), "dm.changes", nil)
	payload, err := json.Marshal(live.Change{Op: live.OpDelete, MessageID: "m9", ConversationKey: "u1_u2"})
	require.NoError(t, err)

	require.NoError(t, f.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte("{bad")}))
	require.NoError(t, f.Handle(context.Background(), &sarama.ConsumerMessage{Value: payload}))

	got := <-f.Changes()
	assert.Equal(t, "m9", got.MessageID)
	assert.Equal(t, live.OpDelete, got.Op)

	require.NoError(t, f.Close())
	_, ok := <-f.Changes()
	assert.False(t, ok)
	assert.ErrorIs(t, f.Handle(context.Background(), &sarama.ConsumerMessage{Value: payload}), live.ErrFeedClosed)
}
