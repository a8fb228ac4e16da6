package credit

import "context"

// Repository is the narrow persistence contract for credits.
// A Repository is a short-lived session: staged inserts become visible to
// its own lookups immediately and durable only after Commit.
type Repository interface {
	// FindByCreditNumber returns the credit with the given business key,
	// or shared.ErrNotFound
	FindByCreditNumber(ctx context.Context, creditNumber string) (*Credit, error)

	// FindByInvoiceNumber returns every committed credit for an invoice
	FindByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]*Credit, error)

	// Insert stages a new credit
	Insert(ctx context.Context, credit *Credit) error

	// Commit durably flushes staged credits.
	// Returns ErrDuplicateCreditNumber on a unique-key conflict.
	Commit(ctx context.Context) error
}

// RepositoryFactory opens a fresh Repository session per unit of work
type RepositoryFactory interface {
	NewSession() Repository
}

// RepositoryFactoryFunc adapts a function to RepositoryFactory
type RepositoryFactoryFunc func() Repository

// NewSession calls f
func (f RepositoryFactoryFunc) NewSession() Repository {
	return f()
}

// Publisher hands a credit transfer object to the message broker.
// A nil error means the broker acknowledged the message.
type Publisher interface {
	Publish(ctx context.Context, topic string, transfer Transfer) error
}
