package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/credit/backend/internal/domain/credit"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransfer() credit.Transfer {
	return credit.Transfer{
		CreditNumber:     "123456",
		InvoiceNumber:    "7891011",
		ConstitutedAt:    time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC),
		TaxValue:         decimal.RequireFromString("1500.75"),
		CreditType:       "ISSQN",
		SimplifiedRegime: "Sim",
		Rate:             decimal.RequireFromString("5.0"),
		BilledValue:      decimal.RequireFromString("30000.00"),
		DeductionValue:   decimal.RequireFromString("5000.00"),
		CalculationBase:  decimal.RequireFromString("25000.00"),
	}
}

func TestEncodeTransfer(t *testing.T) {
	data, err := EncodeTransfer(sampleTransfer())
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	assert.Equal(t, "123456", fields["NumeroCredito"])
	assert.Equal(t, "7891011", fields["NumeroNfse"])
	assert.Equal(t, "2024-02-25T00:00:00Z", fields["DataConstituicao"])
	assert.Equal(t, "Sim", fields["SimplesNacional"])
	assert.Equal(t, "1500.75", fields["ValorIssqn"])
	assert.Len(t, fields, 10)
}

func TestDecodeCredit(t *testing.T) {
	t.Run("decodes an encoded transfer", func(t *testing.T) {
		data, err := EncodeTransfer(sampleTransfer())
		require.NoError(t, err)

		c, err := DecodeCredit(data)
		require.NoError(t, err)

		assert.Equal(t, "123456", c.CreditNumber)
		assert.Equal(t, "7891011", c.InvoiceNumber)
		assert.True(t, c.IsSimplifiedRegime)
		assert.True(t, c.TaxValue.Equal(decimal.RequireFromString("1500.75")))
		assert.True(t, c.CalculationBase.Equal(decimal.RequireFromString("25000")))
		assert.Equal(t, time.UTC, c.ConstitutedAt.Location())
	})

	t.Run("accepts the producer's original shape", func(t *testing.T) {
		payload := `{
			"numeroCredito": "C1",
			"numeroNfse": "NF1",
			"dataConstituicao": "2024-02-25T00:00:00",
			"valorIssqn": 1500.75,
			"tipoCredito": "ISSQN",
			"simplesNacional": "não",
			"aliquota": 5.0,
			"valorFaturado": 30000.00,
			"valorDeducao": 5000.00,
			"baseCalculo": 25000.00
		}`

		c, err := DecodeCredit([]byte(payload))
		require.NoError(t, err)

		assert.Equal(t, "C1", c.CreditNumber)
		assert.False(t, c.IsSimplifiedRegime)
		assert.True(t, c.Rate.Equal(decimal.NewFromInt(5)))
		assert.Equal(t, time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC), c.ConstitutedAt)
	})

	t.Run("keeps decimal precision", func(t *testing.T) {
		c, err := DecodeCredit([]byte(`{"NumeroCredito":"C2","ValorIssqn":0.1000000000000000055511151231257827}`))
		require.NoError(t, err)
		assert.Equal(t, "0.1000000000000000055511151231257827", c.TaxValue.String())
	})

	t.Run("missing boolean defaults to false", func(t *testing.T) {
		c, err := DecodeCredit([]byte(`{"NumeroCredito":"C3"}`))
		require.NoError(t, err)
		assert.False(t, c.IsSimplifiedRegime)
		assert.True(t, c.ConstitutedAt.IsZero())
	})

	failures := []struct {
		name    string
		payload string
	}{
		{"empty payload", ``},
		{"whitespace payload", "  \n"},
		{"not json", `not-json`},
		{"array", `[{"NumeroCredito":"C1"}]`},
		{"json null", `null`},
		{"unknown boolean token", `{"NumeroCredito":"C1","SimplesNacional":"Talvez"}`},
		{"single-letter boolean token", `{"NumeroCredito":"C9","SimplesNacional":"f"}`},
		{"null boolean", `{"NumeroCredito":"C1","SimplesNacional":null}`},
		{"missing business key", `{"NumeroNfse":"NF1","SimplesNacional":"Sim"}`},
		{"bad timestamp", `{"NumeroCredito":"C1","DataConstituicao":"soon"}`},
		{"bad decimal", `{"NumeroCredito":"C1","ValorIssqn":"abc"}`},
	}

	for _, tt := range failures {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			c, err := DecodeCredit([]byte(tt.payload))
			assert.Nil(t, c)
			var decErr *DecodingError
			assert.ErrorAs(t, err, &decErr)
		})
	}
}
