package messaging

import (
	"context"
	"time"
)

// PipelineRecorder receives per-message and per-publish measurements
type PipelineRecorder interface {
	RecordConsumed(ctx context.Context, topic, outcome string, elapsed time.Duration)
	RecordPublished(ctx context.Context, topic string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordConsumed(context.Context, string, string, time.Duration) {}

func (nopRecorder) RecordPublished(context.Context, string, error) {}
