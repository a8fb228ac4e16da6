package messaging

import (
	"context"

	"github.com/credit/backend/internal/domain/credit"
	"go.uber.org/zap"
)

// NoopPublisher logs publish requests without contacting a broker.
// Used when the broker is disabled.
type NoopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher creates a no-op publisher
func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

// Publish encodes the transfer object and logs its size
func (p *NoopPublisher) Publish(_ context.Context, topic string, transfer credit.Transfer) error {
	payload, err := EncodeTransfer(transfer)
	if err != nil {
		return &TransportError{Op: "encode", Topic: topic, Err: err}
	}
	p.logger.Info("noop publish",
		zap.String("topic", topic),
		zap.String("credit_number", transfer.CreditNumber),
		zap.Int("length", len(payload)),
	)
	return nil
}
