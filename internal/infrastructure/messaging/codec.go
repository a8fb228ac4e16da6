package messaging

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/credit/backend/internal/domain/credit"
	"github.com/shopspring/decimal"
)

// CreditMessage is the inbound wire shape of a credit.
// Field names match case-insensitively; SimplesNacional is decoded leniently.
type CreditMessage struct {
	NumeroCredito    string          `json:"NumeroCredito"`
	NumeroNfse       string          `json:"NumeroNfse"`
	DataConstituicao WireTime        `json:"DataConstituicao"`
	ValorIssqn       decimal.Decimal `json:"ValorIssqn"`
	TipoCredito      string          `json:"TipoCredito"`
	SimplesNacional  LenientBool     `json:"SimplesNacional"`
	Aliquota         decimal.Decimal `json:"Aliquota"`
	ValorFaturado    decimal.Decimal `json:"ValorFaturado"`
	ValorDeducao     decimal.Decimal `json:"ValorDeducao"`
	BaseCalculo      decimal.Decimal `json:"BaseCalculo"`
}

// OutboundCredit is the published wire shape of a credit.
// SimplesNacional travels as the caller's human token.
type OutboundCredit struct {
	NumeroCredito    string          `json:"NumeroCredito"`
	NumeroNfse       string          `json:"NumeroNfse"`
	DataConstituicao time.Time       `json:"DataConstituicao"`
	ValorIssqn       decimal.Decimal `json:"ValorIssqn"`
	TipoCredito      string          `json:"TipoCredito"`
	SimplesNacional  string          `json:"SimplesNacional"`
	Aliquota         decimal.Decimal `json:"Aliquota"`
	ValorFaturado    decimal.Decimal `json:"ValorFaturado"`
	ValorDeducao     decimal.Decimal `json:"ValorDeducao"`
	BaseCalculo      decimal.Decimal `json:"BaseCalculo"`
}

// NewOutboundCredit maps a transfer object to its wire shape
func NewOutboundCredit(t credit.Transfer) OutboundCredit {
	return OutboundCredit{
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

// EncodeTransfer serializes a transfer object for publishing
func EncodeTransfer(t credit.Transfer) ([]byte, error) {
	return json.Marshal(NewOutboundCredit(t))
}

// DecodeCredit parses a message payload into a credit.
// Every failure is returned as a *DecodingError.
func DecodeCredit(payload []byte) (*credit.Credit, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, &DecodingError{Reason: "empty payload"}
	}

	var msg CreditMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		var decErr *DecodingError
		if errors.As(err, &decErr) {
			return nil, decErr
		}
		return nil, &DecodingError{Reason: "malformed payload", Err: err}
	}

	return msg.ToCredit()
}

// ToCredit converts the message into a domain credit with a UTC timestamp
func (m CreditMessage) ToCredit() (*credit.Credit, error) {
	c, err := credit.NewCredit(m.NumeroCredito)
	if err != nil {
		return nil, &DecodingError{Field: "NumeroCredito", Reason: "business key missing", Err: err}
	}

	c.InvoiceNumber = m.NumeroNfse
	c.ConstitutedAt = m.DataConstituicao.Time
	c.TaxValue = m.ValorIssqn
	c.CreditType = m.TipoCredito
	c.IsSimplifiedRegime = m.SimplesNacional.Bool()
	c.Rate = m.Aliquota
	c.BilledValue = m.ValorFaturado
	c.DeductionValue = m.ValorDeducao
	c.CalculationBase = m.BaseCalculo
	c.NormalizeConstitutedAt()

	return c, nil
}
