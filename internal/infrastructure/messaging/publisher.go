package messaging

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/credit/backend/internal/domain/credit"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/credit/backend/messaging"

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// PublisherConfig holds publisher settings
type PublisherConfig struct {
	// FlushTimeout bounds the wait for other in-flight sends after a failure
	FlushTimeout time.Duration
}

// DefaultPublisherConfig returns default publisher settings
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		FlushTimeout: 5 * time.Second,
	}
}

// KafkaPublisher publishes credit transfer objects synchronously.
// It is safe for concurrent use.
type KafkaPublisher struct {
	writer   MessageWriter
	config   PublisherConfig
	logger   *zap.Logger
	tracer   trace.Tracer
	recorder PipelineRecorder
	inflight atomic.Int64
}

// NewKafkaPublisher creates a publisher over a shared writer
func NewKafkaPublisher(writer MessageWriter, config PublisherConfig, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:   writer,
		config:   config,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		recorder: nopRecorder{},
	}
}

// SetRecorder installs a metrics recorder
func (p *KafkaPublisher) SetRecorder(r PipelineRecorder) {
	if r != nil {
		p.recorder = r
	}
}

// Publish encodes the transfer object and waits for the broker acknowledgment.
// Failures are returned as *TransportError after a bounded flush; there is no retry.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, transfer credit.Transfer) error {
	ctx, span := p.tracer.Start(ctx, "credit.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", topic),
			attribute.String("credit.number", transfer.CreditNumber),
		),
	)
	defer span.End()

	payload, err := EncodeTransfer(transfer)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return &TransportError{Op: "encode", Topic: topic, Err: err}
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(transfer.CreditNumber),
		Value: payload,
	}

	p.inflight.Add(1)
	err = p.writer.WriteMessages(ctx, msg)
	p.inflight.Add(-1)
	p.recorder.RecordPublished(ctx, topic, err)

	if err != nil {
		p.flush()
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		p.logger.Error("failed to publish credit",
			zap.String("topic", topic),
			zap.String("credit_number", transfer.CreditNumber),
			zap.Error(err),
		)
		return &TransportError{Op: "publish", Topic: topic, Err: err}
	}

	p.logger.Debug("credit published",
		zap.String("topic", topic),
		zap.String("credit_number", transfer.CreditNumber),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

// flush waits until other in-flight sends settle or FlushTimeout elapses
func (p *KafkaPublisher) flush() {
	if p.inflight.Load() == 0 {
		return
	}

	deadline := time.NewTimer(p.config.FlushTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.C:
			p.logger.Warn("flush timed out with sends in flight",
				zap.Int64("inflight", p.inflight.Load()),
			)
			return
		case <-ticker.C:
			if p.inflight.Load() == 0 {
				return
			}
		}
	}
}

// InFlight returns the number of sends awaiting acknowledgment
func (p *KafkaPublisher) InFlight() int64 {
	return p.inflight.Load()
}
