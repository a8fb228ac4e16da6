package messaging

import (
	"context"
	"errors"

	"github.com/credit/backend/internal/domain/credit"
	"github.com/credit/backend/internal/infrastructure/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// CreditIngester stores a decoded credit exactly once per business key
type CreditIngester interface {
	Ingest(ctx context.Context, c *credit.Credit) (credit.IngestResult, error)
}

// CreditHandler decodes credit messages and hands them to an ingester
type CreditHandler struct {
	ingester CreditIngester
}

// NewCreditHandler creates a credit message handler
func NewCreditHandler(ingester CreditIngester) *CreditHandler {
	return &CreditHandler{ingester: ingester}
}

// Handle implements MessageHandler
func (h *CreditHandler) Handle(ctx context.Context, msg kafka.Message) Outcome {
	log := logger.L(ctx)

	c, err := DecodeCredit(msg.Value)
	if err != nil {
		log.Warn("discarding undecodable credit message",
			zap.Error(err),
			zap.Int("payload_length", len(msg.Value)),
		)
		return OutcomeDiscarded
	}

	result, err := h.ingester.Ingest(ctx, c)
	if err != nil {
		var persistErr *credit.PersistenceError
		if errors.As(err, &persistErr) {
			log.Error("failed to persist credit", zap.String("credit_number", c.CreditNumber), zap.Error(err))
		} else {
			log.Error("failed to ingest credit", zap.String("credit_number", c.CreditNumber), zap.Error(err))
		}
		return OutcomeRetry
	}

	if result == credit.IngestDuplicate {
		log.Info("credit already persisted, skipping", zap.String("credit_number", c.CreditNumber))
		return OutcomeDuplicate
	}

	log.Info("credit persisted", zap.String("credit_number", c.CreditNumber))
	return OutcomePersisted
}
