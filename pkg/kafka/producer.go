package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulkable"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/config"
	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
)

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes bulkable actions to the action topic in their
// polymorphic JSON form.
type Producer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewProducer creates a Producer for topic. Messages are hashed on their
// key so every action on one document lands on the same partition and is
// applied in publish order.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return newProducer(w, topic)
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Key is the partition key of an action: index and id, or the index alone
// for actions that let the engine assign the id.
func Key(a bulkable.Action) string {
	m := a.Meta()
	if m.ID == "" {
		return m.Index
	}
	return m.Index + "/" + m.ID
}

// Encode validates a and renders it as a queue message.
func Encode(a bulkable.Action) (kafka.Message, error) {
	if a == nil {
		return kafka.Message{}, fmt.Errorf("%w: nil action", clienterrors.ErrInvalidInput)
	}
	if err := a.Validate(); err != nil {
		return kafka.Message{}, err
	}
	value, err := bulkable.Marshal(a)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding %s action: %w", a.Kind(), err)
	}
	return kafka.Message{
		Key:     []byte(Key(a)),
		Value:   value,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(a.Kind())}},
	}, nil
}

// Publish writes actions synchronously in one write call. Nothing is
// written if any action fails to encode.
func (p *Producer) Publish(ctx context.Context, actions ...bulkable.Action) error {
	if len(actions) == 0 {
		return nil
	}
	messages := make([]kafka.Message, 0, len(actions))
	for i, a := range actions {
		msg, err := Encode(a)
		if err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		messages = append(messages, msg)
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("failed to publish actions", "count", len(messages), "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("actions published", "count", len(messages))
	return nil
}

// Close flushes pending writes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
