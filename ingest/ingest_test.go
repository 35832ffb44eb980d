package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Session string `json:"session"`
	N       int    `json:"n"`
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu          sync.Mutex
	pending     []kafka.Message
	committed   []int64
	byPartition map[int][]int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		m := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byPartition == nil {
		r.byPartition = map[int][]int64{}
	}
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
		r.byPartition[m.Partition] = append(r.byPartition[m.Partition], m.Offset)
	}
	return nil
}

func (r *fakeReader) partitionCommits(p int) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.byPartition[p]...)
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func (r *fakeReader) Close() error { return nil }

type memQueue struct {
	mu    sync.Mutex
	items []record
	err   error
	delay func(record) time.Duration
}

func (q *memQueue) Enqueue(r record) error {
	if q.delay != nil {
		time.Sleep(q.delay(r))
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, r)
	return nil
}

func (q *memQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func TestProducer_SendWritesKeyedMessages(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducer[record](w, func(r record) string { return r.Session })

	require.NoError(t, p.Send(context.Background(), []record{{Session: "s1", N: 1}, {Session: "s2", N: 2}}))
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "s1", string(w.msgs[0].Key))

	var got record
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &got))
	assert.Equal(t, record{Session: "s2", N: 2}, got)
}

func TestProducer_SendWrapsWriterError(t *testing.T) {
	down := errors.New("broker down")
	p := NewProducer[record](&fakeWriter{err: down}, nil)

	assert.ErrorIs(t, p.Send(context.Background(), []record{{N: 1}}), down)
	assert.NoError(t, p.Send(context.Background(), nil))
}

func TestConsumer_EnqueuesAndCommits(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{
		{Offset: 1, Value: []byte(`{"session":"s1","n":1}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`{"session":"s1","n":3}`)},
	}}
	q := &memQueue{}
	c := NewConsumer[record](r, q, 1, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(r.commits()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 2, q.len())
	assert.Equal(t, []int64{1, 2, 3}, r.commits())
}

func TestConsumer_LeavesMessageUncommittedWhenEnqueueFails(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{{Offset: 9, Value: []byte(`{"n":9}`)}}}
	q := &memQueue{err: errors.New("closed")}
	c := NewConsumer[record](r, q, 2, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	assert.Empty(t, r.commits())
}

func TestConsumer_CommitsEachPartitionInOrder(t *testing.T) {
	var msgs []kafka.Message
	for i := 0; i < 40; i++ {
		msgs = append(msgs, kafka.Message{
			Partition: i % 2,
			Offset:    int64(i / 2),
			Value:     []byte(fmt.Sprintf(`{"n":%d}`, i)),
		})
	}
	r := &fakeReader{pending: msgs}
	// Uneven enqueue latency would reorder commits across free-running workers.
	q := &memQueue{delay: func(rec record) time.Duration {
		return time.Duration(rec.N%3) * time.Millisecond
	}}
	c := NewConsumer[record](r, q, 4, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(r.commits()) == 40 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	for p := 0; p < 2; p++ {
		got := r.partitionCommits(p)
		require.Len(t, got, 20)
		assert.IsIncreasing(t, got, "partition %d", p)
	}
}
