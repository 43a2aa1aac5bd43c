// Package kafka is the bulkable action queue, backed by
// segmentio/kafka-go. Producers publish actions in their polymorphic JSON
// form keyed by document; the consumer hands raw messages to the feeder,
// which commits them only after the bulk request carrying them is done.
package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulkable"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/config"
)

// Message is a queued action as read from the topic.
type Message = kafka.Message

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads the action topic as part of a consumer group. Offsets
// are committed explicitly.
type Consumer struct {
	reader messageReader
	logger *slog.Logger
}

// NewConsumer creates a Consumer for topic in cfg.ConsumerGroup.
func NewConsumer(cfg config.KafkaConfig, topic string) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return &Consumer{
		reader: r,
		logger: slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Fetch blocks until the next message is available or ctx is done.
func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	c.logger.Debug("message received",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"value_size", len(msg.Value),
	)
	return msg, nil
}

// Commit marks msgs as processed for the consumer group.
func (c *Consumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		c.logger.Error("failed to commit messages", "count", len(msgs), "error", err)
		return fmt.Errorf("committing kafka offsets: %w", err)
	}
	return nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Decode parses a message value into the action it carries. Actions that
// could never be sent, such as a delete without an index, are rejected here
// rather than failing the whole bulk request later.
func Decode(msg Message) (bulkable.Action, error) {
	a, err := bulkable.Unmarshal(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("decoding kafka message at %d/%d: %w", msg.Partition, msg.Offset, err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("kafka message at %d/%d: %w", msg.Partition, msg.Offset, err)
	}
	return a, nil
}
