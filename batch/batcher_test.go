package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSinkDown = errors.New("sink down")

// recordingSink keeps a copy of every batch it receives. fail decides, per
// call index, whether that call should error.
type recordingSink struct {
	mu    sync.Mutex
	calls [][]int
	fail  func(call int) bool
}

func (s *recordingSink) Send(_ context.Context, items []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := len(s.calls)
	s.calls = append(s.calls, append([]int(nil), items...))
	if s.fail != nil && s.fail(call) {
		return errSinkDown
	}
	return nil
}

func (s *recordingSink) snapshot() [][]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]int, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *recordingSink) setFail(f func(int) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = f
}

type resultLog struct {
	mu      sync.Mutex
	results []Result
}

func (l *resultLog) report(r Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, r)
}

func (l *resultLog) all() []Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Result(nil), l.results...)
}

func closeBatcher(t *testing.T, b *Batcher[int]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.Close(ctx))
}

func TestBatcher_SizeThresholdFlushesImmediately(t *testing.T) {
	sink := &recordingSink{}
	b := New[int](Config{Name: "events", Size: 10, Timeout: time.Hour}, sink)
	defer closeBatcher(t, b)

	for i := 0; i < 12; i++ {
		require.NoError(t, b.Enqueue(i))
	}

	assert.Equal(t, 2, b.Len())
	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	calls := sink.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, calls[0])
	assert.Equal(t, 2, b.Len())
}

func TestBatcher_IdleTimeoutFlushesOnce(t *testing.T) {
	sink := &recordingSink{}
	b := New[int](Config{Name: "events", Size: 10, Timeout: 30 * time.Millisecond}, sink)
	defer closeBatcher(t, b)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Enqueue(i))
	}

	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	calls := sink.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, []int{0, 1, 2}, calls[0])
	assert.Equal(t, 0, b.Len())
}

func TestBatcher_TimerIsTrailingWindow(t *testing.T) {
	sink := &recordingSink{}
	b := New[int](Config{Name: "events", Size: 10, Timeout: 150 * time.Millisecond}, sink)
	defer closeBatcher(t, b)

	require.NoError(t, b.Enqueue(1))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, b.Enqueue(2))
	time.Sleep(60 * time.Millisecond)

	// 120ms after the first enqueue but only 60ms after the last one.
	assert.Empty(t, sink.snapshot())

	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 2}, sink.snapshot()[0])
}

func TestBatcher_FailedBatchIsRequeuedAtFront(t *testing.T) {
	sink := &recordingSink{fail: func(call int) bool { return call == 0 }}
	results := &resultLog{}
	b := New[int](Config{Name: "events", Size: 3, Timeout: time.Hour}, sink, WithReporter(results.report))
	defer closeBatcher(t, b)

	for i := 1; i <= 3; i++ {
		require.NoError(t, b.Enqueue(i))
	}
	assert.Eventually(t, func() bool { return b.Len() == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Enqueue(4))
	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 5*time.Millisecond)

	calls := sink.snapshot()
	assert.Equal(t, []int{1, 2, 3}, calls[0])
	assert.Equal(t, []int{1, 2, 3, 4}, calls[1])

	got := results.all()
	require.Len(t, got, 2)
	assert.ErrorIs(t, got[0].Err, errSinkDown)
	assert.True(t, got[0].Requeued)
	assert.Zero(t, got[0].Dropped)
	assert.NoError(t, got[1].Err)
	assert.Equal(t, 4, got[1].Items)
}

func TestBatcher_RequeuedBatchRetriesOnIdleTimer(t *testing.T) {
	sink := &recordingSink{fail: func(call int) bool { return call == 0 }}
	b := New[int](Config{Name: "events", Size: 10, Timeout: 30 * time.Millisecond}, sink)
	defer closeBatcher(t, b)

	require.NoError(t, b.Enqueue(7))
	require.NoError(t, b.Enqueue(8))

	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	calls := sink.snapshot()
	assert.Equal(t, calls[0], calls[1])
	assert.Equal(t, []int{7, 8}, calls[1])
}

func TestBatcher_MaxQueueDropsOldest(t *testing.T) {
	sink := &recordingSink{fail: func(int) bool { return true }}
	results := &resultLog{}
	b := New[int](Config{Name: "events", Size: 2, MaxQueue: 3, Timeout: time.Hour}, sink, WithReporter(results.report))
	defer closeBatcher(t, b)

	require.NoError(t, b.Enqueue(1))
	require.NoError(t, b.Enqueue(2))
	assert.Eventually(t, func() bool { return b.Len() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Enqueue(3))
	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 2 && b.Len() == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Enqueue(4))
	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 3 && b.Len() == 3 }, time.Second, 5*time.Millisecond)

	sink.setFail(nil)
	b.Flush()
	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 4 }, time.Second, 5*time.Millisecond)

	calls := sink.snapshot()
	assert.Equal(t, []int{2, 3, 4}, calls[2])
	assert.Equal(t, []int{2, 3, 4}, calls[3])

	dropped := 0
	for _, r := range results.all() {
		if errors.Is(r.Err, ErrQueueFull) {
			dropped += r.Dropped
		}
	}
	assert.Equal(t, 1, dropped)
}

func TestBatcher_MaxQueueCountsBatchInFlight(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var sent [][]int
	sink := SinkFunc[int](func(_ context.Context, items []int) error {
		<-release
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, append([]int(nil), items...))
		return nil
	})
	results := &resultLog{}
	b := New[int](Config{Name: "events", Size: 2, MaxQueue: 4, Timeout: time.Hour}, sink, WithReporter(results.report))

	for i := 1; i <= 1000; i++ {
		require.NoError(t, b.Enqueue(i))
	}

	// [1 2] is out with the stalled sink, so only two more fit.
	assert.Equal(t, 2, b.Len())

	dropped := 0
	for _, r := range results.all() {
		require.ErrorIs(t, r.Err, ErrQueueFull)
		dropped += r.Dropped
	}
	assert.Equal(t, 996, dropped)

	close(release)
	closeBatcher(t, b)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]int{{1, 2}, {999, 1000}}, sent)
}

func TestBatcher_PartialFailureRequeuesOnlyFailed(t *testing.T) {
	var mu sync.Mutex
	var calls [][]int
	sink := SinkFunc[int](func(_ context.Context, items []int) error {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, append([]int(nil), items...))
		if len(calls) == 1 {
			return &PartialError[int]{Failed: items[2:], Err: errSinkDown}
		}
		return nil
	})
	snapshot := func() [][]int {
		mu.Lock()
		defer mu.Unlock()
		return append([][]int(nil), calls...)
	}
	results := &resultLog{}
	b := New[int](Config{Name: "events", Size: 4, Timeout: time.Hour}, sink, WithReporter(results.report))
	defer closeBatcher(t, b)

	for i := 1; i <= 4; i++ {
		require.NoError(t, b.Enqueue(i))
	}
	assert.Eventually(t, func() bool { return b.Len() == 2 }, time.Second, 5*time.Millisecond)

	b.Flush()
	assert.Eventually(t, func() bool { return len(snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{3, 4}, snapshot()[1])

	got := results.all()
	require.Len(t, got, 2)
	assert.ErrorIs(t, got[0].Err, errSinkDown)
	assert.Equal(t, 4, got[0].Items)
	assert.Equal(t, 2, got[0].Failed)
	assert.True(t, got[0].Requeued)
	assert.NoError(t, got[1].Err)
}

func TestBatcher_CloseDropsOnlyUndeliveredRecords(t *testing.T) {
	sink := SinkFunc[int](func(_ context.Context, items []int) error {
		return &PartialError[int]{Failed: items[:1], Err: errSinkDown}
	})
	results := &resultLog{}
	b := New[int](Config{Name: "events", Size: 10, Timeout: time.Hour}, sink, WithReporter(results.report))

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Enqueue(i))
	}
	closeBatcher(t, b)

	got := results.all()
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Dropped)
	assert.False(t, got[0].Requeued)
}

func TestBatcher_CloseFlushesPending(t *testing.T) {
	sink := &recordingSink{}
	b := New[int](Config{Name: "events", Size: 10, Timeout: time.Hour}, sink)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Enqueue(i))
	}
	closeBatcher(t, b)

	calls := sink.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, []int{0, 1, 2}, calls[0])
	assert.ErrorIs(t, b.Enqueue(3), ErrClosed)
}

func TestBatcher_CloseDropsFailedFinalBatch(t *testing.T) {
	sink := &recordingSink{fail: func(int) bool { return true }}
	results := &resultLog{}
	b := New[int](Config{Name: "events", Size: 10, Timeout: time.Hour}, sink, WithReporter(results.report))

	require.NoError(t, b.Enqueue(1))
	require.NoError(t, b.Enqueue(2))
	closeBatcher(t, b)

	got := results.all()
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Dropped)
	assert.False(t, got[0].Requeued)
}

func TestBatcher_NoRecordsLostUnderConcurrentEnqueue(t *testing.T) {
	sink := &recordingSink{}
	b := New[int](Config{Name: "events", Size: 7, Timeout: 10 * time.Millisecond}, sink)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = b.Enqueue(w*100 + i)
			}
		}(w)
	}
	wg.Wait()
	closeBatcher(t, b)

	seen := make(map[int]int)
	total := 0
	for _, call := range sink.snapshot() {
		for _, v := range call {
			seen[v]++
			total++
		}
	}
	assert.Equal(t, 100, total)
	assert.Len(t, seen, 100)
}

func TestSinkFunc(t *testing.T) {
	var got []string
	sink := SinkFunc[string](func(_ context.Context, items []string) error {
		got = append(got, items...)
		return nil
	})
	require.NoError(t, sink.Send(context.Background(), []string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, got)
}
