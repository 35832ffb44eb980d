// Package batch queues records in memory and submits them to a Sink in
// batches, flushing when the queue reaches a size threshold or after a
// trailing idle window, whichever comes first.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrClosed is returned by Enqueue after Close has been called.
	ErrClosed = errors.New("batch: batcher closed")
	// ErrQueueFull is reported when MaxQueue forces the oldest records out.
	ErrQueueFull = errors.New("batch: queue full, oldest records dropped")
)

const (
	DefaultSize        = 10
	DefaultTimeout     = 5 * time.Second
	DefaultSendTimeout = 15 * time.Second
)

// Sink receives one flushed batch per call.
type Sink[T any] interface {
	Send(ctx context.Context, items []T) error
}

// PartialError is returned by a Sink that delivered only part of a batch.
// Failed holds the records to retry, in their original order.
type PartialError[T any] struct {
	Failed []T
	Err    error
}

func (e *PartialError[T]) Error() string {
	return fmt.Sprintf("batch: %d records not delivered: %v", len(e.Failed), e.Err)
}

func (e *PartialError[T]) Unwrap() error { return e.Err }

// SinkFunc adapts a plain function to a Sink.
type SinkFunc[T any] func(ctx context.Context, items []T) error

func (f SinkFunc[T]) Send(ctx context.Context, items []T) error { return f(ctx, items) }

// Config controls when a Batcher flushes.
type Config struct {
	Name        string
	Size        int
	Timeout     time.Duration
	MaxQueue    int // 0 means unbounded; counts the batch being sent
	SendTimeout time.Duration
}

// Result describes the outcome of one send, or of a MaxQueue overflow.
type Result struct {
	Name     string
	Items    int
	Err      error
	Failed   int
	Requeued bool
	Dropped  int
	Duration time.Duration
}

// Reporter is notified of every Result. It runs on the sender goroutine
// (or the enqueuing goroutine for overflow) and must not block for long.
type Reporter func(Result)

type options struct {
	reporter Reporter
	logger   zerolog.Logger
}

type Option func(*options)

// WithReporter replaces the default logging reporter.
func WithReporter(r Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithLogger sets the logger used by the default reporter.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Batcher owns one queue, its idle timer and a single sender goroutine.
// Enqueue never performs I/O. At most one batch is out of the queue at a
// time; while it is being sent new records accumulate in the queue and a
// flush that comes due is taken as soon as the send returns.
type Batcher[T any] struct {
	cfg    Config
	sink   Sink[T]
	report Reporter
	tracer trace.Tracer

	mu       sync.Mutex
	queue    []T
	next     []T
	inflight int
	busy     bool
	due      bool
	timer    *time.Timer
	gen      uint64
	closed   bool

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New starts a Batcher delivering to sink.
func New[T any](cfg Config, sink Sink[T], opts ...Option) *Batcher[T] {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.MaxQueue > 0 && cfg.MaxQueue < cfg.Size {
		cfg.MaxQueue = cfg.Size
	}

	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reporter == nil {
		o.reporter = LogReporter(o.logger)
	}

	b := &Batcher[T]{
		cfg:    cfg,
		sink:   sink,
		report: o.reporter,
		tracer: otel.Tracer("nmafoods/api/batch"),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

// LogReporter logs failures at warn and successful sends at debug.
func LogReporter(l zerolog.Logger) Reporter {
	return func(r Result) {
		if r.Err != nil {
			l.Warn().Err(r.Err).
				Str("batch", r.Name).
				Int("items", r.Items).
				Int("failed", r.Failed).
				Bool("requeued", r.Requeued).
				Int("dropped", r.Dropped).
				Msg("batch send failed")
			return
		}
		l.Debug().
			Str("batch", r.Name).
			Int("items", r.Items).
			Dur("took", r.Duration).
			Msg("batch sent")
	}
}

// Enqueue appends item to the queue. Reaching Size cuts the whole queue into
// a batch for the sender; otherwise the idle timer is re-armed.
func (b *Batcher[T]) Enqueue(item T) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.queue = append(b.queue, item)
	dropped := b.trimLocked()
	if len(b.queue) >= b.cfg.Size {
		b.cutLocked()
	} else {
		b.armLocked()
	}
	b.mu.Unlock()

	if dropped > 0 {
		b.report(Result{Name: b.cfg.Name, Err: ErrQueueFull, Dropped: dropped})
	}
	return nil
}

// Flush hands whatever is queued to the sender without waiting for a trigger.
func (b *Batcher[T]) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.cutLocked()
	}
}

// Len returns the number of records waiting in the queue. The batch being
// sent is not counted.
func (b *Batcher[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close flushes the queue one last time and waits for the sender to finish
// or ctx to expire. Batches that fail during the final flush are dropped.
func (b *Batcher[T]) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		b.disarmLocked()
		b.cutLocked()
	}
	b.mu.Unlock()

	b.stopOnce.Do(func() { close(b.stop) })

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Batcher[T]) run() {
	defer close(b.done)
	for {
		select {
		case <-b.wake:
			b.drain()
		case <-b.stop:
			b.drain()
			return
		}
	}
}

func (b *Batcher[T]) drain() {
	for {
		b.mu.Lock()
		batch := b.next
		b.next = nil
		final := b.closed
		b.mu.Unlock()
		if batch == nil {
			return
		}

		b.send(batch, final)

		b.mu.Lock()
		b.busy = false
		b.inflight = 0
		if b.due || b.closed {
			b.due = false
			b.takeLocked()
		}
		b.mu.Unlock()
	}
}

func (b *Batcher[T]) send(batch []T, final bool) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.SendTimeout)
	defer cancel()

	ctx, span := b.tracer.Start(ctx, "batch.send", trace.WithAttributes(
		attribute.String("batch.name", b.cfg.Name),
		attribute.Int("batch.items", len(batch)),
	))
	start := time.Now()
	err := b.sink.Send(ctx, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	res := Result{Name: b.cfg.Name, Items: len(batch), Err: err, Duration: time.Since(start)}
	if err != nil {
		failed := batch
		var partial *PartialError[T]
		if errors.As(err, &partial) {
			failed = partial.Failed
		}
		res.Failed = len(failed)
		switch {
		case len(failed) == 0:
		case final:
			res.Dropped = len(failed)
		default:
			res.Requeued = true
			res.Dropped = b.requeue(failed)
		}
	}
	b.report(res)
}

// requeue puts failed records back at the front of the queue in their
// original order and re-arms the idle timer so they are retried without new
// traffic. If Close raced the send, the drain loop gives them a final attempt.
func (b *Batcher[T]) requeue(failed []T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inflight = 0
	merged := make([]T, 0, len(failed)+len(b.queue))
	merged = append(merged, failed...)
	merged = append(merged, b.queue...)
	b.queue = merged

	dropped := b.trimLocked()
	if !b.closed {
		b.armLocked()
	}
	return dropped
}

// trimLocked drops the oldest queued records until the queue and the batch
// being sent together fit in MaxQueue.
func (b *Batcher[T]) trimLocked() int {
	if b.cfg.MaxQueue <= 0 {
		return 0
	}
	room := max(b.cfg.MaxQueue-b.inflight, 0)
	if len(b.queue) <= room {
		return 0
	}
	n := len(b.queue) - room
	kept := make([]T, room)
	copy(kept, b.queue[n:])
	b.queue = kept
	return n
}

// cutLocked hands the queue to the sender, or marks a flush as due when a
// batch is already out.
func (b *Batcher[T]) cutLocked() {
	b.disarmLocked()
	if len(b.queue) == 0 {
		return
	}
	if b.busy {
		b.due = true
		return
	}
	b.takeLocked()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Batcher[T]) takeLocked() {
	if len(b.queue) == 0 {
		return
	}
	b.disarmLocked()
	b.next = b.queue
	b.queue = nil
	b.busy = true
	b.inflight = len(b.next)
}

func (b *Batcher[T]) armLocked() {
	b.disarmLocked()
	gen := b.gen
	b.timer = time.AfterFunc(b.cfg.Timeout, func() { b.onTimer(gen) })
}

func (b *Batcher[T]) disarmLocked() {
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Batcher[T]) onTimer(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen || b.closed {
		return
	}
	b.cutLocked()
}
