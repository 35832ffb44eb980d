package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader the Consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Queue receives decoded records, typically a batch.Batcher.
type Queue[T any] interface {
	Enqueue(item T) error
}

// Consumer decodes JSON messages into T and enqueues them. Messages are
// committed once enqueued; undecodable messages are committed and skipped.
// One goroutine fetches and hands each message to the worker that owns its
// partition, so commits for a partition are always in offset order.
type Consumer[T any] struct {
	reader  MessageReader
	queue   Queue[T]
	workers int
	log     zerolog.Logger
}

// NewReader builds a group reader for topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		Topic:           topic,
		GroupID:         groupID,
		MinBytes:        10e3, // 10KB
		MaxBytes:        10e6, // 10MB
		MaxWait:         1 * time.Second,
		ReadLagInterval: -1,
		StartOffset:     kafka.FirstOffset,
	})
}

func NewConsumer[T any](r MessageReader, q Queue[T], workers int, log zerolog.Logger) *Consumer[T] {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer[T]{reader: r, queue: q, workers: workers, log: log}
}

// Run consumes until ctx is cancelled. Messages already handed to a worker
// are still handled before Run returns.
func (c *Consumer[T]) Run(ctx context.Context) {
	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			c.work(ctx, id, in)
		}(i, lanes[i])
	}

	c.fetch(ctx, lanes)
	for _, lane := range lanes {
		close(lane)
	}
	wg.Wait()
}

func (c *Consumer[T]) work(ctx context.Context, id int, in <-chan kafka.Message) {
	log := c.log.With().Int("worker", id).Logger()
	log.Info().Msg("consumer worker started")
	for m := range in {
		c.handle(ctx, log, m)
	}
	log.Info().Msg("consumer worker stopping")
}

func (c *Consumer[T]) fetch(ctx context.Context, lanes []chan kafka.Message) {
	for {
		if ctx.Err() != nil {
			return
		}

		readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		m, err := c.reader.FetchMessage(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			c.log.Error().Err(err).Msg("fetch message")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		select {
		case lanes[m.Partition%len(lanes)] <- m:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer[T]) handle(ctx context.Context, log zerolog.Logger, m kafka.Message) {
	var item T
	if err := json.Unmarshal(m.Value, &item); err != nil {
		log.Warn().Err(err).Int64("offset", m.Offset).Msg("skipping undecodable message")
		c.commit(ctx, log, m)
		return
	}
	if err := c.queue.Enqueue(item); err != nil {
		// Left uncommitted so the group redelivers it.
		log.Error().Err(err).Int64("offset", m.Offset).Msg("enqueue message")
		return
	}
	c.commit(ctx, log, m)
}

func (c *Consumer[T]) commit(ctx context.Context, log zerolog.Logger, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Error().Err(err).Int64("offset", m.Offset).Msg("commit message")
	}
}

func (c *Consumer[T]) Close() error {
	return c.reader.Close()
}
