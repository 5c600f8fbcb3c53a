package mongo

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/live"
)

const retryDelay = 2 * time.Second

// ChangeStream feeds the hub from a collection change stream. Writes need no explicit
// publish: the server emits the event. Requires a replica set.
type ChangeStream struct {
	col    *mongo.Collection
	logger *slog.Logger
	ch     chan live.Change
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewChangeStream starts watching the messages collection.
func NewChangeStream(db *mongo.Database, logger *slog.Logger) *ChangeStream {
	ctx, cancel := context.WithCancel(context.Background())
	s := &ChangeStream{
		col:    db.Collection(messagesCollection),
		logger: logger,
		ch:     make(chan live.Change, 256),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

func (s *ChangeStream) Publish(context.Context, live.Change) error {
	return nil
}

func (s *ChangeStream) Changes() <-chan live.Change {
	return s.ch
}

func (s *ChangeStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

func (s *ChangeStream) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.ch)
	var resume bson.Raw
	for ctx.Err() == nil {
		token, err := s.watch(ctx, resume)
		if token != nil {
			resume = token
		}
		if ctx.Err() != nil {
			return
		}
		if s.logger != nil {
			s.logger.Warn("mongo change stream interrupted", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

func (s *ChangeStream) watch(ctx context.Context, resume bson.Raw) (bson.Raw, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": bson.A{"insert", "delete"}}}}},
	}
	opts := options.ChangeStream()
	if resume != nil {
		opts.SetResumeAfter(resume)
	}
	cs, err := s.col.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, err
	}
	defer cs.Close(context.Background())

	for cs.Next(ctx) {
		var ev changeEvent
		if err := cs.Decode(&ev); err != nil {
			if s.logger != nil {
				s.logger.Warn("mongo change event undecodable", "error", err)
			}
			continue
		}
		select {
		case s.ch <- ev.toChange():
		case <-ctx.Done():
			return cs.ResumeToken(), ctx.Err()
		}
	}
	return cs.ResumeToken(), cs.Err()
}

type changeEvent struct {
	OperationType string           `bson:"operationType"`
	DocumentKey   documentKey      `bson:"documentKey"`
	FullDocument  *messageDocument `bson:"fullDocument"`
}

type documentKey struct {
	ID string `bson:"_id"`
}

// toChange builds the hub notification. Delete events carry only the document key,
// so they refresh every subscription.
func (e changeEvent) toChange() live.Change {
	c := live.Change{MessageID: e.DocumentKey.ID}
	switch e.OperationType {
	case "insert":
		c.Op = live.OpInsert
	default:
		c.Op = live.OpDelete
	}
	if e.FullDocument != nil {
		c.ConversationKey = conversation.Key(e.FullDocument.ConversationKey)
		c.Participants = append([]string(nil), e.FullDocument.Participants...)
	}
	return c
}

var _ live.Feed = (*ChangeStream)(nil)
