package credit

import (
	"time"

	"github.com/credit/backend/internal/domain/credit"
	"github.com/shopspring/decimal"
)

// IntegrateCreditInput is one credit submitted for asynchronous integration
type IntegrateCreditInput struct {
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

// ToTransfer converts the input to the transfer object handed to the broker
func (in IntegrateCreditInput) ToTransfer() credit.Transfer {
	return credit.Transfer{
		CreditNumber:     in.CreditNumber,
		InvoiceNumber:    in.InvoiceNumber,
		ConstitutedAt:    in.ConstitutedAt,
		TaxValue:         in.TaxValue,
		CreditType:       in.CreditType,
		SimplifiedRegime: in.SimplifiedRegime,
		Rate:             in.Rate,
		BilledValue:      in.BilledValue,
		DeductionValue:   in.DeductionValue,
		CalculationBase:  in.CalculationBase,
	}
}

// CreditResponse represents a persisted credit in API responses
type CreditResponse struct {
	NumeroCredito    string          `json:"numeroCredito"`
	NumeroNfse       string          `json:"numeroNfse"`
	DataConstituicao time.Time       `json:"dataConstituicao"`
	ValorIssqn       decimal.Decimal `json:"valorIssqn"`
	TipoCredito      string          `json:"tipoCredito"`
	SimplesNacional  string          `json:"simplesNacional"`
	Aliquota         decimal.Decimal `json:"aliquota"`
	ValorFaturado    decimal.Decimal `json:"valorFaturado"`
	ValorDeducao     decimal.Decimal `json:"valorDeducao"`
	BaseCalculo      decimal.Decimal `json:"baseCalculo"`
}

// ToCreditResponse converts a domain credit to a response
func ToCreditResponse(c *credit.Credit) CreditResponse {
	t := c.ToTransfer()
	return CreditResponse{
		NumeroCredito:    t.CreditNumber,
		NumeroNfse:       t.InvoiceNumber,
		DataConstituicao: t.ConstitutedAt,
		ValorIssqn:       t.TaxValue,
		TipoCredito:      t.CreditType,
		SimplesNacional:  t.SimplifiedRegime,
		Aliquota:         t.Rate,
		ValorFaturado:    t.BilledValue,
		ValorDeducao:     t.DeductionValue,
		BaseCalculo:      t.CalculationBase,
	}
}

// ToCreditResponses converts a slice of credits
func ToCreditResponses(credits []*credit.Credit) []CreditResponse {
	responses := make([]CreditResponse, len(credits))
	for i, c := range credits {
		responses[i] = ToCreditResponse(c)
	}
	return responses
}
