package credit

import (
	"context"
	"time"

	"github.com/credit/backend/internal/domain/credit"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mocks
// =============================================================================

// MockRepository is a mock implementation of credit.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByCreditNumber(ctx context.Context, creditNumber string) (*credit.Credit, error) {
	args := m.Called(ctx, creditNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credit.Credit), args.Error(1)
}

func (m *MockRepository) FindByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]*credit.Credit, error) {
	args := m.Called(ctx, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*credit.Credit), args.Error(1)
}

func (m *MockRepository) Insert(ctx context.Context, c *credit.Credit) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockRepository) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func factoryFor(repo credit.Repository) credit.RepositoryFactory {
	return credit.RepositoryFactoryFunc(func() credit.Repository { return repo })
}

// MockPublisher is a mock implementation of credit.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, transfer credit.Transfer) error {
	args := m.Called(ctx, topic, transfer)
	return args.Error(0)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}
