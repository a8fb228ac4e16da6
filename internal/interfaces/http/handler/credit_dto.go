package handler

import (
	creditapp "github.com/credit/backend/internal/application/credit"
	"github.com/credit/backend/internal/infrastructure/messaging"
	"github.com/shopspring/decimal"
)

// IntegrateCreditRequest is one element of the integration request body.
// Field names match the broker payload; JSON decoding ignores their case.
type IntegrateCreditRequest struct {
	NumeroCredito    string             `json:"NumeroCredito" binding:"required,max=50"`
	NumeroNfse       string             `json:"NumeroNfse" binding:"required,max=50"`
	DataConstituicao messaging.WireTime `json:"DataConstituicao"`
	ValorIssqn       decimal.Decimal    `json:"ValorIssqn"`
	TipoCredito      string             `json:"TipoCredito" binding:"required,max=50"`
	SimplesNacional  string             `json:"SimplesNacional" binding:"required,lenient_bool"`
	Aliquota         decimal.Decimal    `json:"Aliquota"`
	ValorFaturado    decimal.Decimal    `json:"ValorFaturado"`
	ValorDeducao     decimal.Decimal    `json:"ValorDeducao"`
	BaseCalculo      decimal.Decimal    `json:"BaseCalculo"`
}

// ToInput converts the request to the application input.
// SimplesNacional is forwarded as sent; consumers parse it leniently.
func (r IntegrateCreditRequest) ToInput() creditapp.IntegrateCreditInput {
	return creditapp.IntegrateCreditInput{
		CreditNumber:     r.NumeroCredito,
		InvoiceNumber:    r.NumeroNfse,
		ConstitutedAt:    r.DataConstituicao.Time,
		TaxValue:         r.ValorIssqn,
		CreditType:       r.TipoCredito,
		SimplifiedRegime: r.SimplesNacional,
		Rate:             r.Aliquota,
		BilledValue:      r.ValorFaturado,
		DeductionValue:   r.ValorDeducao,
		CalculationBase:  r.BaseCalculo,
	}
}
