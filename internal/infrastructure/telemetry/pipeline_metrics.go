package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewPipelineMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// PipelineMetrics counts credits flowing through the publish and consume paths.
type PipelineMetrics struct {
	consumedTotal   *Counter
	messageDuration *Histogram
	publishedTotal  *Counter
}

// NewPipelineMetrics registers the pipeline instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	consumed, err := NewCounter(meter,
		"credit_messages_consumed_total",
		"Messages processed by the consumer, by outcome",
		"{messages}",
	)
	if err != nil {
		return nil, err
	}

	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "credit_message_duration_seconds",
		Description: "Time spent handling one consumed message",
		Unit:        "s",
		Boundaries:  MessageDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	published, err := NewCounter(meter,
		"credit_published_total",
		"Credits sent to the broker, by status",
		"{credits}",
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		consumedTotal:   consumed,
		messageDuration: duration,
		publishedTotal:  published,
	}, nil
}

// RecordConsumed records one consumed message and its handling time.
func (m *PipelineMetrics) RecordConsumed(ctx context.Context, topic, outcome string, elapsed time.Duration) {
	m.consumedTotal.Inc(ctx, AttrTopic.String(topic), AttrOutcome.String(outcome))
	m.messageDuration.RecordDuration(ctx, elapsed, AttrTopic.String(topic), AttrOutcome.String(outcome))
}

// RecordPublished records one publish attempt.
func (m *PipelineMetrics) RecordPublished(ctx context.Context, topic string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.publishedTotal.Inc(ctx, AttrTopic.String(topic), AttrStatus.String(status))
}
