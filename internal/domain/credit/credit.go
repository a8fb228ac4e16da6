package credit

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Credit represents one constituted ISSQN tax credit.
// CreditNumber is the business key and is unique once persisted.
// ID is the storage identifier, zero until the credit is committed.
type Credit struct {
	ID                 int64
	CreditNumber       string
	InvoiceNumber      string
	ConstitutedAt      time.Time
	TaxValue           decimal.Decimal
	CreditType         string
	IsSimplifiedRegime bool
	Rate               decimal.Decimal
	BilledValue        decimal.Decimal
	DeductionValue     decimal.Decimal
	CalculationBase    decimal.Decimal
}

// NewCredit creates a credit identified by its business key
func NewCredit(creditNumber string) (*Credit, error) {
	creditNumber = strings.TrimSpace(creditNumber)
	if creditNumber == "" {
		return nil, ErrCreditNumberRequired
	}
	return &Credit{CreditNumber: creditNumber}, nil
}

// NormalizeConstitutedAt stores the constitution timestamp in UTC.
// The zero time is left untouched.
func (c *Credit) NormalizeConstitutedAt() {
	if c.ConstitutedAt.IsZero() {
		return
	}
	c.ConstitutedAt = c.ConstitutedAt.UTC()
}

// Transfer is the caller-facing shape of a credit at publish time.
// SimplifiedRegime stays a human token ("Sim"/"Não") on this side of the broker.
type Transfer struct {
	CreditNumber     string
	InvoiceNumber    string
	ConstitutedAt    time.Time
	TaxValue         decimal.Decimal
	CreditType       string
	SimplifiedRegime string
	Rate             decimal.Decimal
	BilledValue      decimal.Decimal
	DeductionValue   decimal.Decimal
	CalculationBase  decimal.Decimal
}

// ToTransfer returns the caller-facing representation of the credit
func (c *Credit) ToTransfer() Transfer {
	return Transfer{
		CreditNumber:     c.CreditNumber,
		InvoiceNumber:    c.InvoiceNumber,
		ConstitutedAt:    c.ConstitutedAt,
		TaxValue:         c.TaxValue,
		CreditType:       c.CreditType,
		SimplifiedRegime: FormatRegimeFlag(c.IsSimplifiedRegime),
		Rate:             c.Rate,
		BilledValue:      c.BilledValue,
		DeductionValue:   c.DeductionValue,
		CalculationBase:  c.CalculationBase,
	}
}

// FormatRegimeFlag renders the simplified-regime flag as "Sim" or "Não"
func FormatRegimeFlag(v bool) string {
	if v {
		return "Sim"
	}
	return "Não"
}

// IngestResult is the storage outcome of ingesting one credit
type IngestResult int

const (
	// IngestPersisted means the credit was inserted and committed
	IngestPersisted IngestResult = iota + 1
	// IngestDuplicate means a credit with the same business key already exists
	IngestDuplicate
)

// String returns the result name
func (r IngestResult) String() string {
	switch r {
	case IngestPersisted:
		return "persisted"
	case IngestDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}
