package credit

import (
	"fmt"

	"github.com/credit/backend/internal/domain/shared"
)

var (
	// ErrCreditNumberRequired is returned when a credit has no business key
	ErrCreditNumberRequired = shared.NewDomainError("INVALID_INPUT", "Credit number cannot be empty")

	// ErrDuplicateCreditNumber is returned by Commit when the storage layer
	// rejects a credit number that is already persisted
	ErrDuplicateCreditNumber = shared.NewDomainError("ALREADY_EXISTS", "Credit number already exists")
)

// PersistenceError wraps a storage failure for a single credit operation.
// The pipeline treats it as retriable.
type PersistenceError struct {
	Op           string
	CreditNumber string
	Err          error
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	if e.CreditNumber == "" {
		return fmt.Sprintf("credit %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("credit %s failed for %s: %v", e.Op, e.CreditNumber, e.Err)
}

// Unwrap returns the underlying error
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
