package messaging

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/credit/backend/internal/infrastructure/logger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MessageReader is the subset of *kafka.Reader the consumer needs
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageHandler processes one message and reports its outcome.
// Implementations must not block on the consumer's cancellation.
type MessageHandler interface {
	Handle(ctx context.Context, msg kafka.Message) Outcome
}

// MessageHandlerFunc adapts a function to MessageHandler
type MessageHandlerFunc func(ctx context.Context, msg kafka.Message) Outcome

// Handle calls f
func (f MessageHandlerFunc) Handle(ctx context.Context, msg kafka.Message) Outcome {
	return f(ctx, msg)
}

// Outcome is the result of processing a single message
type Outcome int

const (
	OutcomePersisted Outcome = iota + 1
	OutcomeDuplicate
	OutcomeDiscarded
	OutcomeRetry
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case OutcomePersisted:
		return "persisted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// ShouldCommit reports whether the offset may advance past the message
func (o Outcome) ShouldCommit() bool {
	return o == OutcomePersisted || o == OutcomeDuplicate || o == OutcomeDiscarded
}

// State is the consumer loop state
type State int32

const (
	StateIdle State = iota
	StateSubscribing
	StatePolling
	StateProcessing
	StateCommitting
	StateBackoff
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribing:
		return "subscribing"
	case StatePolling:
		return "polling"
	case StateProcessing:
		return "processing"
	case StateCommitting:
		return "committing"
	case StateBackoff:
		return "backoff"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConsumerConfig holds consumer loop settings
type ConsumerConfig struct {
	Topic         string
	GroupID       string
	Backoff       time.Duration
	CommitTimeout time.Duration
}

// DefaultConsumerConfig returns default consumer settings
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Topic:         "integrar-credito-constituido-entry",
		GroupID:       "creditos-consumer-group",
		Backoff:       time.Second,
		CommitTimeout: 5 * time.Second,
	}
}

// ConsumerStats holds per-outcome counters
type ConsumerStats struct {
	Persisted      int64
	Duplicates     int64
	Discarded      int64
	Retries        int64
	FetchErrors    int64
	CommitFailures int64
}

// Consumer runs the single-threaded receive/process/commit loop.
// A message's offset is committed only after its outcome allows it; a
// message that must be retried is handled again after Backoff and the loop
// never moves past it.
type Consumer struct {
	reader   MessageReader
	handler  MessageHandler
	config   ConsumerConfig
	logger   *zap.Logger
	tracer   trace.Tracer
	recorder PipelineRecorder

	state atomic.Int32

	persisted      atomic.Int64
	duplicates     atomic.Int64
	discarded      atomic.Int64
	retries        atomic.Int64
	fetchErrors    atomic.Int64
	commitFailures atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer creates a consumer over an already-subscribed reader
func NewConsumer(reader MessageReader, handler MessageHandler, config ConsumerConfig, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:   reader,
		handler:  handler,
		config:   config,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		recorder: nopRecorder{},
	}
}

// SetRecorder installs a metrics recorder; call before Start
func (c *Consumer) SetRecorder(r PipelineRecorder) {
	if r != nil {
		c.recorder = r
	}
}

// Start runs the loop in the background
func (c *Consumer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Run(ctx); err != nil {
			c.logger.Error("consumer stopped with error", zap.Error(err))
		}
	}()
}

// Stop cancels the loop and waits for the in-flight message to finish
func (c *Consumer) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run blocks until ctx is cancelled. The reader is closed on return.
func (c *Consumer) Run(ctx context.Context) error {
	c.setState(StateSubscribing)
	c.logger.Info("consumer subscribed",
		zap.String("topic", c.config.Topic),
		zap.String("group_id", c.config.GroupID),
	)

	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("failed to close reader", zap.Error(err))
		}
		c.setState(StateClosed)
		c.logger.Info("consumer closed")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		c.setState(StatePolling)
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.fetchErrors.Add(1)
			c.logger.Error("failed to fetch message",
				zap.Error(&TransportError{Op: "fetch", Topic: c.config.Topic, Err: err}),
				zap.Duration("backoff", c.config.Backoff),
			)
			c.setState(StateBackoff)
			if !sleepContext(ctx, c.config.Backoff) {
				return nil
			}
			continue
		}

		outcome := c.handle(ctx, msg)
		for attempt := 1; !outcome.ShouldCommit(); attempt++ {
			c.logger.Warn("message left uncommitted, retrying",
				zap.String("outcome", outcome.String()),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", c.config.Backoff),
			)
			c.setState(StateBackoff)
			if !sleepContext(ctx, c.config.Backoff) {
				// Committed offsets are cumulative per partition, so nothing past
				// msg may be committed; the next reader resumes at msg.
				return nil
			}
			outcome = c.handle(ctx, msg)
		}

		c.setState(StateCommitting)
		c.commit(ctx, msg)
	}
}

// handle processes msg once and records its outcome
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) Outcome {
	c.setState(StateProcessing)
	started := time.Now()
	// The in-flight message runs to completion even if shutdown starts.
	outcome := c.process(context.WithoutCancel(ctx), msg)
	c.record(outcome)
	c.recorder.RecordConsumed(ctx, msg.Topic, outcome.String(), time.Since(started))
	return outcome
}

// process invokes the handler, mapping a panic to OutcomeRetry
func (c *Consumer) process(ctx context.Context, msg kafka.Message) (outcome Outcome) {
	meta := logger.MessageMeta{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       string(msg.Key),
	}
	ctx, msgLogger := logger.WithMessage(ctx, c.logger, meta)

	ctx, span := c.tracer.Start(ctx, "credit.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			msgLogger.Error("panic while processing message",
				zap.String("panic", fmt.Sprint(r)),
				zap.Stack("stack"),
			)
			outcome = OutcomeRetry
		}
		span.SetAttributes(attribute.String("credit.outcome", outcome.String()))
	}()

	return c.handler.Handle(ctx, msg)
}

// commit acknowledges the message; failures are logged and the loop proceeds
func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.CommitTimeout)
	defer cancel()

	if err := c.reader.CommitMessages(commitCtx, msg); err != nil {
		c.commitFailures.Add(1)
		c.logger.Error("failed to commit offset",
			zap.Error(&TransportError{Op: "commit", Topic: msg.Topic, Err: err}),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	}
}

func (c *Consumer) record(o Outcome) {
	switch o {
	case OutcomePersisted:
		c.persisted.Add(1)
	case OutcomeDuplicate:
		c.duplicates.Add(1)
	case OutcomeDiscarded:
		c.discarded.Add(1)
	case OutcomeRetry:
		c.retries.Add(1)
	}
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
}

// State returns the current loop state
func (c *Consumer) State() State {
	return State(c.state.Load())
}

// Stats returns a snapshot of the outcome counters
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Persisted:      c.persisted.Load(),
		Duplicates:     c.duplicates.Load(),
		Discarded:      c.discarded.Load(),
		Retries:        c.retries.Load(),
		FetchErrors:    c.fetchErrors.Load(),
		CommitFailures: c.commitFailures.Load(),
	}
}

// sleepContext waits for d, returning false if ctx is cancelled first
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
