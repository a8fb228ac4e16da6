package credit

import (
	"context"
	"errors"

	"github.com/credit/backend/internal/domain/credit"
	"github.com/credit/backend/internal/domain/shared"
	"github.com/credit/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const processedKeyPrefix = "credit:"

// IngestionService persists decoded credits at most once per credit number
type IngestionService struct {
	sessions  credit.RepositoryFactory
	processed shared.IdempotencyStore
	config    shared.IdempotencyConfig
	logger    *zap.Logger
}

// IngestionOption configures an IngestionService
type IngestionOption func(*IngestionService)

// WithProcessedKeyStore enables the processed-key cache in front of the database lookup
func WithProcessedKeyStore(store shared.IdempotencyStore, config shared.IdempotencyConfig) IngestionOption {
	return func(s *IngestionService) {
		s.processed = store
		s.config = config
	}
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(sessions credit.RepositoryFactory, logger *zap.Logger, opts ...IngestionOption) *IngestionService {
	s := &IngestionService{
		sessions: sessions,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest stores the credit unless one with the same credit number exists.
// Storage failures are returned as *credit.PersistenceError.
func (s *IngestionService) Ingest(ctx context.Context, c *credit.Credit) (result credit.IngestResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit", "ingest",
		telemetry.WithAttribute(telemetry.SpanAttrCreditNumber, c.CreditNumber),
	)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetAttribute(span, telemetry.SpanAttrResult, result.String())
		}
		span.End()
	}()

	return s.ingest(ctx, c)
}

func (s *IngestionService) ingest(ctx context.Context, c *credit.Credit) (credit.IngestResult, error) {
	c.NormalizeConstitutedAt()

	if s.wasProcessed(ctx, c.CreditNumber) {
		return credit.IngestDuplicate, nil
	}

	repo := s.sessions.NewSession()

	existing, err := repo.FindByCreditNumber(ctx, c.CreditNumber)
	switch {
	case err == nil && existing != nil:
		s.markProcessed(ctx, c.CreditNumber)
		return credit.IngestDuplicate, nil
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return 0, &credit.PersistenceError{Op: "lookup", CreditNumber: c.CreditNumber, Err: err}
	}

	if err := repo.Insert(ctx, c); err != nil {
		return 0, &credit.PersistenceError{Op: "insert", CreditNumber: c.CreditNumber, Err: err}
	}

	if err := repo.Commit(ctx); err != nil {
		// Lost the check-then-insert race to a concurrent writer.
		if errors.Is(err, credit.ErrDuplicateCreditNumber) {
			s.markProcessed(ctx, c.CreditNumber)
			return credit.IngestDuplicate, nil
		}
		return 0, &credit.PersistenceError{Op: "commit", CreditNumber: c.CreditNumber, Err: err}
	}

	s.markProcessed(ctx, c.CreditNumber)
	return credit.IngestPersisted, nil
}

func (s *IngestionService) wasProcessed(ctx context.Context, creditNumber string) bool {
	if s.processed == nil || !s.config.Enabled {
		return false
	}
	seen, err := s.processed.IsProcessed(ctx, processedKeyPrefix+creditNumber)
	if err != nil {
		s.logger.Warn("processed-key lookup failed, falling back to database",
			zap.String("credit_number", creditNumber),
			zap.Error(err),
		)
		return false
	}
	return seen
}

func (s *IngestionService) markProcessed(ctx context.Context, creditNumber string) {
	if s.processed == nil || !s.config.Enabled {
		return
	}
	if _, err := s.processed.MarkProcessed(ctx, processedKeyPrefix+creditNumber, s.config.TTL); err != nil {
		s.logger.Warn("failed to mark credit as processed",
			zap.String("credit_number", creditNumber),
			zap.Error(err),
		)
	}
}
