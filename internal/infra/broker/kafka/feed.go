package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"direct-messaging/internal/live"
)

// FeedConfig locates the change topic.
type FeedConfig struct {
	Brokers     []string
	Topic       string
	GroupPrefix string
}

// ChangeFeed fans message changes out to every instance through a Kafka topic.
// Each instance joins its own consumer group so all of them see every change.
type ChangeFeed struct {
	producer *Producer
	topic    string
	logger   *slog.Logger

	consumer *Consumer
	cancel   context.CancelFunc
	done     chan struct{}

	mu     sync.RWMutex
	ch     chan live.Change
	closed bool
}

// NewChangeFeed connects the producer and starts consuming from the newest offset.
func NewChangeFeed(cfg FeedConfig, logger *slog.Logger) (*ChangeFeed, error) {
	producer, err := NewProducer(cfg.Brokers, nil)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	f := newChangeFeed(producer, cfg.Topic, logger)

	consumerCfg := sarama.NewConfig()
	consumerCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	groupID := fmt.Sprintf("%s-%s", cfg.GroupPrefix, uuid.NewString())
	consumer, err := NewConsumer(cfg.Brokers, groupID, consumerCfg, f)
	if err != nil {
		_ = producer.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	f.consumer = consumer

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	go func() {
		defer close(f.done)
		if err := consumer.Run(ctx, []string{cfg.Topic}); err != nil && ctx.Err() == nil && logger != nil {
			logger.Error("kafka change consumer stopped", "topic", cfg.Topic, "error", err)
		}
	}()
	if logger != nil {
		logger.Info("kafka change feed started", "topic", cfg.Topic, "group", groupID)
	}
	return f, nil
}

func newChangeFeed(producer *Producer, topic string, logger *slog.Logger) *ChangeFeed {
	return &ChangeFeed{
		producer: producer,
		topic:    topic,
		logger:   logger,
		ch:       make(chan live.Change, 256),
	}
}

func (f *ChangeFeed) Publish(ctx context.Context, c live.Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return f.producer.Publish(ctx, f.topic, string(c.ConversationKey), payload, map[string]string{"op": string(c.Op)})
}

// Handle decodes one record into the change channel. Undecodable records are skipped.
func (f *ChangeFeed) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var c live.Change
	if err := json.Unmarshal(msg.Value, &c); err != nil {
		if f.logger != nil {
			f.logger.Warn("kafka change undecodable", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return live.ErrFeedClosed
	}
	select {
	case f.ch <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *ChangeFeed) Changes() <-chan live.Change {
	return f.ch
}

func (f *ChangeFeed) Close() error {
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.ch)
	f.mu.Unlock()

	var errs []error
	if f.consumer != nil {
		if err := f.consumer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := f.producer.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close kafka feed: %v", errs)
	}
	return nil
}

var (
	_ live.Feed      = (*ChangeFeed)(nil)
	_ MessageHandler = (*ChangeFeed)(nil)
)
