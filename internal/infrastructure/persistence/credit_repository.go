package persistence

import (
	"context"
	"errors"

	"github.com/credit/backend/internal/domain/credit"
	"github.com/credit/backend/internal/domain/shared"
	"github.com/credit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCreditRepository implements credit.Repository using GORM.
// It is a unit of work: Insert stages records in memory and Commit writes
// them in a single transaction.
type GormCreditRepository struct {
	db     *gorm.DB
	staged []*credit.Credit
}

// NewGormCreditRepository creates a new GormCreditRepository session
func NewGormCreditRepository(db *gorm.DB) *GormCreditRepository {
	return &GormCreditRepository{db: db}
}

// NewGormCreditSessions returns a factory opening one repository session per call
func NewGormCreditSessions(db *gorm.DB) credit.RepositoryFactory {
	return credit.RepositoryFactoryFunc(func() credit.Repository {
		return NewGormCreditRepository(db)
	})
}

// FindByCreditNumber finds a credit by business key, including staged inserts
func (r *GormCreditRepository) FindByCreditNumber(ctx context.Context, creditNumber string) (*credit.Credit, error) {
	for _, c := range r.staged {
		if c.CreditNumber == creditNumber {
			return c, nil
		}
	}

	var model models.CreditModel
	if err := r.db.WithContext(ctx).
		Where("numero_credito = ?", creditNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInvoiceNumber finds every committed credit for an invoice
func (r *GormCreditRepository) FindByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]*credit.Credit, error) {
	var rows []models.CreditModel
	if err := r.db.WithContext(ctx).
		Where("numero_nfse = ?", invoiceNumber).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	credits := make([]*credit.Credit, len(rows))
	for i := range rows {
		credits[i] = rows[i].ToDomain()
	}
	return credits, nil
}

// Insert stages a credit for the next Commit
func (r *GormCreditRepository) Insert(_ context.Context, c *credit.Credit) error {
	if c == nil {
		return shared.NewDomainError("INVALID_INPUT", "Credit cannot be nil")
	}
	r.staged = append(r.staged, c)
	return nil
}

// Commit writes staged credits in one transaction and assigns their IDs.
// A unique-key conflict is reported as credit.ErrDuplicateCreditNumber.
func (r *GormCreditRepository) Commit(ctx context.Context) error {
	if len(r.staged) == 0 {
		return nil
	}

	rows := make([]*models.CreditModel, len(r.staged))
	for i, c := range r.staged {
		rows[i] = models.CreditModelFromDomain(c)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(rows).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return credit.ErrDuplicateCreditNumber
		}
		return err
	}

	for i, c := range r.staged {
		c.ID = rows[i].ID
	}
	r.staged = nil
	return nil
}

// Pending returns the number of staged, uncommitted credits
func (r *GormCreditRepository) Pending() int {
	return len(r.staged)
}
