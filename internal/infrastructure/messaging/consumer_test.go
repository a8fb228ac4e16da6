package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeReader replays queued fetch results, then blocks until cancelled.
// Commits advance a per-partition position the way a consumer group does:
// committing offset N marks everything up to N as consumed.
type fakeReader struct {
	mu        sync.Mutex
	queue     []fetchResult
	committed []kafka.Message
	positions map[int]int64
	commitErr error
	closed    bool

	drained     chan struct{}
	drainedOnce sync.Once
}

type fetchResult struct {
	msg kafka.Message
	err error
}

func newFakeReader(results ...fetchResult) *fakeReader {
	return &fakeReader{queue: results, positions: map[int]int64{}, drained: make(chan struct{})}
}

func messages(payloads ...string) []fetchResult {
	results := make([]fetchResult, len(payloads))
	for i, p := range payloads {
		results[i] = fetchResult{msg: kafka.Message{
			Topic:     "credits",
			Partition: 0,
			Offset:    int64(i),
			Value:     []byte(p),
		}}
	}
	return results
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		next := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return next.msg, next.err
	}
	r.mu.Unlock()

	r.drainedOnce.Do(func() { close(r.drained) })
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commitErr != nil {
		return r.commitErr
	}
	r.committed = append(r.committed, msgs...)
	for _, m := range msgs {
		if m.Offset+1 > r.positions[m.Partition] {
			r.positions[m.Partition] = m.Offset + 1
		}
	}
	return nil
}

// position is the offset a restarted group member would resume from
func (r *fakeReader) position(partition int) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.positions[partition]
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	offsets := make([]int64, len(r.committed))
	for i, m := range r.committed {
		offsets[i] = m.Offset
	}
	return offsets
}

func (r *fakeReader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// runUntilDrained runs the consumer until every queued fetch has been served
func runUntilDrained(t *testing.T, c *Consumer, r *fakeReader) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-r.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the reader")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
}

func testConsumerConfig() ConsumerConfig {
	cfg := DefaultConsumerConfig()
	cfg.Topic = "credits"
	cfg.Backoff = 10 * time.Millisecond
	return cfg
}

func fixedOutcomes(outcomes ...Outcome) MessageHandler {
	var mu sync.Mutex
	i := 0
	return MessageHandlerFunc(func(context.Context, kafka.Message) Outcome {
		mu.Lock()
		defer mu.Unlock()
		o := outcomes[i]
		i++
		return o
	})
}

// offsetRecorder returns outcomes in order and remembers which offsets it saw
type offsetRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
	seen     []int64
}

func (h *offsetRecorder) Handle(_ context.Context, msg kafka.Message) Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.Offset)
	o := h.outcomes[0]
	h.outcomes = h.outcomes[1:]
	return o
}

func (h *offsetRecorder) offsets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.seen...)
}

func TestConsumer_CommitsOnlyAfterSuccess(t *testing.T) {
	reader := newFakeReader(messages("a", "b", "c", "d")...)
	handler := &offsetRecorder{outcomes: []Outcome{
		OutcomePersisted, OutcomeDuplicate, OutcomeRetry, OutcomePersisted, OutcomeDiscarded,
	}}
	c := NewConsumer(reader, handler, testConsumerConfig(), zap.NewNop())

	runUntilDrained(t, c, reader)

	assert.Equal(t, []int64{0, 1, 2, 2, 3}, handler.offsets())
	assert.Equal(t, []int64{0, 1, 2, 3}, reader.committedOffsets())
	assert.Equal(t, int64(4), reader.position(0))
	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Persisted)
	assert.Equal(t, int64(1), stats.Duplicates)
	assert.Equal(t, int64(1), stats.Retries)
	assert.Equal(t, int64(1), stats.Discarded)
}

func TestConsumer_NeverCommitsPastARetriedMessage(t *testing.T) {
	reader := newFakeReader(messages("a", "b", "c")...)
	var retried atomic.Int64
	handler := MessageHandlerFunc(func(_ context.Context, msg kafka.Message) Outcome {
		if msg.Offset == 1 {
			retried.Add(1)
			return OutcomeRetry
		}
		return OutcomePersisted
	})
	c := NewConsumer(reader, handler, testConsumerConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return retried.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{0}, reader.committedOffsets())
	assert.Equal(t, int64(1), reader.position(0), "group must resume at the failed message")
	assert.GreaterOrEqual(t, c.Stats().Retries, int64(3))
	assert.Equal(t, int64(1), c.Stats().Persisted)
}

func TestConsumer_ClosesReaderOnCancellation(t *testing.T) {
	reader := newFakeReader()
	c := NewConsumer(reader, fixedOutcomes(), testConsumerConfig(), zap.NewNop())

	runUntilDrained(t, c, reader)

	assert.True(t, reader.isClosed())
	assert.Equal(t, StateClosed, c.State())
}

func TestConsumer_ReturnsImmediatelyWhenAlreadyCancelled(t *testing.T) {
	reader := newFakeReader(messages("a")...)
	handled := false
	handler := MessageHandlerFunc(func(context.Context, kafka.Message) Outcome {
		handled = true
		return OutcomePersisted
	})
	c := NewConsumer(reader, handler, testConsumerConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.Run(ctx))
	assert.False(t, handled)
	assert.True(t, reader.isClosed())
}

func TestConsumer_BacksOffOnFetchError(t *testing.T) {
	fetchErr := errors.New("broker unreachable")
	results := append([]fetchResult{{err: fetchErr}, {err: fetchErr}}, messages("a")...)
	reader := newFakeReader(results...)

	core, logs := observer.New(zapcore.ErrorLevel)
	cfg := testConsumerConfig()
	cfg.Backoff = 30 * time.Millisecond
	c := NewConsumer(reader, fixedOutcomes(OutcomePersisted), cfg, zap.New(core))

	start := time.Now()
	runUntilDrained(t, c, reader)

	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Equal(t, int64(2), c.Stats().FetchErrors)
	assert.Equal(t, int64(1), c.Stats().Persisted)
	assert.Equal(t, 2, logs.FilterMessage("failed to fetch message").Len())
}

func TestConsumer_CancellationDuringBackoffStops(t *testing.T) {
	reader := newFakeReader(fetchResult{err: errors.New("down")})
	cfg := testConsumerConfig()
	cfg.Backoff = time.Hour
	c := NewConsumer(reader, fixedOutcomes(), cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.State() == StateBackoff }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("backoff did not observe cancellation")
	}
	assert.Equal(t, StateClosed, c.State())
}

func TestConsumer_CommitFailureDoesNotStopLoop(t *testing.T) {
	reader := newFakeReader(messages("a", "b")...)
	reader.commitErr = errors.New("rebalance in progress")
	c := NewConsumer(reader, fixedOutcomes(OutcomePersisted, OutcomePersisted), testConsumerConfig(), zap.NewNop())

	runUntilDrained(t, c, reader)

	assert.Equal(t, int64(2), c.Stats().Persisted)
	assert.Equal(t, int64(2), c.Stats().CommitFailures)
}

func TestConsumer_RecoversHandlerPanic(t *testing.T) {
	reader := newFakeReader(messages("boom", "ok")...)
	calls := 0
	handler := MessageHandlerFunc(func(_ context.Context, msg kafka.Message) Outcome {
		calls++
		if calls == 1 {
			panic("unexpected nil")
		}
		return OutcomePersisted
	})

	core, logs := observer.New(zapcore.ErrorLevel)
	c := NewConsumer(reader, handler, testConsumerConfig(), zap.New(core))

	runUntilDrained(t, c, reader)

	assert.Equal(t, 3, calls)
	assert.Equal(t, []int64{0, 1}, reader.committedOffsets())
	assert.Equal(t, int64(1), c.Stats().Retries)
	assert.Equal(t, 1, logs.FilterMessage("panic while processing message").Len())
}

func TestConsumer_InFlightMessageSurvivesCancellation(t *testing.T) {
	reader := newFakeReader(messages("slow")...)
	ctx, cancel := context.WithCancel(context.Background())

	var handlerCtxErr error
	handler := MessageHandlerFunc(func(hctx context.Context, _ kafka.Message) Outcome {
		cancel()
		time.Sleep(10 * time.Millisecond)
		handlerCtxErr = hctx.Err()
		return OutcomePersisted
	})
	c := NewConsumer(reader, handler, testConsumerConfig(), zap.NewNop())

	require.NoError(t, c.Run(ctx))

	assert.NoError(t, handlerCtxErr)
	assert.Equal(t, []int64{0}, reader.committedOffsets())
	assert.Equal(t, StateClosed, c.State())
}

func TestConsumer_StartStop(t *testing.T) {
	reader := newFakeReader(messages("a")...)
	c := NewConsumer(reader, fixedOutcomes(OutcomePersisted), testConsumerConfig(), zap.NewNop())

	c.Start(context.Background())
	<-reader.drained

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))

	assert.True(t, reader.isClosed())
	assert.Equal(t, []int64{0}, reader.committedOffsets())
}

func TestOutcome(t *testing.T) {
	assert.True(t, OutcomePersisted.ShouldCommit())
	assert.True(t, OutcomeDuplicate.ShouldCommit())
	assert.True(t, OutcomeDiscarded.ShouldCommit())
	assert.False(t, OutcomeRetry.ShouldCommit())
	assert.False(t, Outcome(0).ShouldCommit())

	assert.Equal(t, "retry", OutcomeRetry.String())
	assert.Equal(t, "unknown", Outcome(42).String())
	assert.Equal(t, "backoff", StateBackoff.String())
}
