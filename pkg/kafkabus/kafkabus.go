// Package kafkabus fans order events out across service instances through a
// Kafka topic.
package kafkabus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pharmahub/internal/notify"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	writeTimeout = 5 * time.Second
	readBackoff  = time.Second
)

// Config holds the brokers and topic shared by every instance.
type Config struct {
	Brokers []string
	Topic   string
}

// Bus publishes events to the topic and relays the topic back into a local sink.
type Bus struct {
	cfg    Config
	writer *kafka.Writer
	logger *zap.Logger
}

// New creates a Bus. No connection is made until the first write or Relay.
func New(cfg Config, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			Async:                  true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.Warn("dropping events, kafka write failed",
						zap.Int("messages", len(messages)),
						zap.Error(err),
					)
				}
			},
		},
		logger: logger,
	}
}

// Dispatch implements notify.Dispatcher. The write is asynchronous; failures
// surface only in the log.
func (b *Bus) Dispatch(channel, event string, payload interface{}) {
	evt := notify.Event{Channel: channel, Name: event, Payload: payload, SentAt: time.Now()}
	value, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error("failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	// keyed by channel so one recipient's events stay ordered on one partition
	err = b.writer.WriteMessages(ctx, kafka.Message{Key: []byte(channel), Value: value})
	if err != nil {
		b.logger.Warn("dropping event, kafka write failed",
			zap.String("channel", channel),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// Relay reads the topic with an instance-unique consumer group, so every
// instance sees every event, and hands each one to sink until ctx is done.
func (b *Bus) Relay(ctx context.Context, sink notify.Sink) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		Topic:       b.cfg.Topic,
		GroupID:     "pharmahub-relay-" + uuid.New().String(),
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	defer reader.Close()

	b.logger.Info("relaying Kafka events", zap.String("topic", b.cfg.Topic))
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				b.logger.Info("Kafka relay stopped")
				return
			}
			b.logger.Error("error reading message", zap.Error(err))
			time.Sleep(readBackoff)
			continue
		}

		var evt notify.Event
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			b.logger.Error("discarding malformed event",
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}
		sink.Deliver(evt)
	}
}

// Close flushes and closes the writer.
func (b *Bus) Close() error {
	if err := b.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
