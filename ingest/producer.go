// Package ingest moves analytics records through Kafka. The API publishes
// batches with a Producer; cmd/worker reads them back with a Consumer and
// persists them.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the Producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes records of type T as JSON messages. It is a batch sink:
// each Send writes the whole batch in one call.
type Producer[T any] struct {
	writer MessageWriter
	key    func(T) string
}

// NewWriter builds the writer shared by all producers of one topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireAll,
	}
}

// NewProducer returns a Producer keyed by key, so records with the same key
// (a session id) land on the same partition.
func NewProducer[T any](w MessageWriter, key func(T) string) *Producer[T] {
	return &Producer[T]{writer: w, key: key}
}

func (p *Producer[T]) Send(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(items))
	for _, item := range items {
		value, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		msg := kafka.Message{Value: value}
		if p.key != nil {
			msg.Key = []byte(p.key(item))
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	return nil
}

func (p *Producer[T]) Close() error {
	return p.writer.Close()
}
