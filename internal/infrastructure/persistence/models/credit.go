package models

import (
	"time"

	"github.com/credit/backend/internal/domain/credit"
	"github.com/shopspring/decimal"
)

// CreditModel is the persistence model for the credito table.
// numero_credito carries a unique index so concurrent inserts of one
// business key cannot both commit.
type CreditModel struct {
	ID                 int64           `gorm:"column:id;primaryKey;autoIncrement"`
	CreditNumber       string          `gorm:"column:numero_credito;type:text;not null;uniqueIndex:uq_credito_numero_credito"`
	InvoiceNumber      string          `gorm:"column:numero_nfse;type:text;not null;index:idx_credito_numero_nfse"`
	ConstitutedAt      time.Time       `gorm:"column:data_constituicao;not null"`
	TaxValue           decimal.Decimal `gorm:"column:valor_issqn;type:numeric;not null"`
	CreditType         string          `gorm:"column:tipo_credito;type:text;not null"`
	IsSimplifiedRegime bool            `gorm:"column:simples_nacional;not null"`
	Rate               decimal.Decimal `gorm:"column:aliquota;type:numeric;not null"`
	BilledValue        decimal.Decimal `gorm:"column:valor_faturado;type:numeric;not null"`
	DeductionValue     decimal.Decimal `gorm:"column:valor_deducao;type:numeric;not null"`
	CalculationBase    decimal.Decimal `gorm:"column:base_calculo;type:numeric;not null"`
}

// TableName returns the table name for GORM
func (CreditModel) TableName() string {
	return "credito"
}

// ToDomain converts the persistence model to a domain credit
func (m *CreditModel) ToDomain() *credit.Credit {
	return &credit.Credit{
		ID:                 m.ID,
		CreditNumber:       m.CreditNumber,
		InvoiceNumber:      m.InvoiceNumber,
		ConstitutedAt:      m.ConstitutedAt.UTC(),
		TaxValue:           m.TaxValue,
		CreditType:         m.CreditType,
		IsSimplifiedRegime: m.IsSimplifiedRegime,
		Rate:               m.Rate,
		BilledValue:        m.BilledValue,
		DeductionValue:     m.DeductionValue,
		CalculationBase:    m.CalculationBase,
	}
}

// FromDomain populates the persistence model from a domain credit
func (m *CreditModel) FromDomain(c *credit.Credit) {
	m.ID = c.ID
	m.CreditNumber = c.CreditNumber
	m.InvoiceNumber = c.InvoiceNumber
	m.ConstitutedAt = c.ConstitutedAt
	m.TaxValue = c.TaxValue
	m.CreditType = c.CreditType
	m.IsSimplifiedRegime = c.IsSimplifiedRegime
	m.Rate = c.Rate
	m.BilledValue = c.BilledValue
	m.DeductionValue = c.DeductionValue
	m.CalculationBase = c.CalculationBase
}

// CreditModelFromDomain creates a persistence model from a domain credit
func CreditModelFromDomain(c *credit.Credit) *CreditModel {
	m := &CreditModel{}
	m.FromDomain(c)
	return m
}
