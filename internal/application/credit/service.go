package credit

import (
	"context"
	"fmt"
	"strings"

	"github.com/credit/backend/internal/domain/credit"
	"github.com/credit/backend/internal/domain/shared"
	"github.com/credit/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrNoCredits is returned when an integration request carries no credits
var ErrNoCredits = shared.NewDomainError("INVALID_INPUT", "At least one credit is required")

// PublishError reports how many credits of a batch were published before a failure
type PublishError struct {
	Published    int
	CreditNumber string
	Err          error
}

// Error implements the error interface
func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish credit %s after %d published: %v", e.CreditNumber, e.Published, e.Err)
}

// Unwrap returns the underlying error
func (e *PublishError) Unwrap() error {
	return e.Err
}

// CreditService handles the request side of the pipeline and credit lookups
type CreditService struct {
	publisher credit.Publisher
	sessions  credit.RepositoryFactory
	topic     string
	logger    *zap.Logger
}

// NewCreditService creates a new CreditService
func NewCreditService(publisher credit.Publisher, sessions credit.RepositoryFactory, topic string, logger *zap.Logger) *CreditService {
	return &CreditService{
		publisher: publisher,
		sessions:  sessions,
		topic:     topic,
		logger:    logger,
	}
}

// Integrate publishes every credit in order and returns how many were published.
// Publishing stops at the first failure, reported as *PublishError.
func (s *CreditService) Integrate(ctx context.Context, inputs []IntegrateCreditInput) (int, error) {
	if len(inputs) == 0 {
		return 0, ErrNoCredits
	}
	for i, in := range inputs {
		if strings.TrimSpace(in.CreditNumber) == "" {
			return 0, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Credit at position %d has no credit number", i))
		}
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "credit", "integrate",
		telemetry.WithAttribute(telemetry.SpanAttrBatchSize, len(inputs)),
	)
	defer span.End()

	published := 0
	for _, in := range inputs {
		if err := s.publisher.Publish(ctx, s.topic, in.ToTransfer()); err != nil {
			pubErr := &PublishError{Published: published, CreditNumber: in.CreditNumber, Err: err}
			telemetry.RecordError(span, pubErr)
			return published, pubErr
		}
		published++
	}

	s.logger.Info("credits published for integration",
		zap.String("topic", s.topic),
		zap.Int("count", published),
	)
	return published, nil
}

// GetByCreditNumber retrieves a persisted credit by its business key
func (s *CreditService) GetByCreditNumber(ctx context.Context, creditNumber string) (*CreditResponse, error) {
	c, err := s.sessions.NewSession().FindByCreditNumber(ctx, creditNumber)
	if err != nil {
		return nil, err
	}
	response := ToCreditResponse(c)
	return &response, nil
}

// ListByInvoiceNumber retrieves every persisted credit for an invoice
func (s *CreditService) ListByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]CreditResponse, error) {
	credits, err := s.sessions.NewSession().FindByInvoiceNumber(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}
	return ToCreditResponses(credits), nil
}
