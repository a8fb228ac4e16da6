package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	creditapp "github.com/credit/backend/internal/application/credit"
	"github.com/credit/backend/internal/domain/shared"
	"github.com/credit/backend/internal/interfaces/http/dto"
	"github.com/credit/backend/internal/interfaces/http/middleware"
	"github.com/credit/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCreditAPI struct {
	mock.Mock
}

func (m *mockCreditAPI) Integrate(ctx context.Context, inputs []creditapp.IntegrateCreditInput) (int, error) {
	args := m.Called(ctx, inputs)
	return args.Int(0), args.Error(1)
}

func (m *mockCreditAPI) GetByCreditNumber(ctx context.Context, creditNumber string) (*creditapp.CreditResponse, error) {
	args := m.Called(ctx, creditNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*creditapp.CreditResponse), args.Error(1)
}

func (m *mockCreditAPI) ListByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]creditapp.CreditResponse, error) {
	args := m.Called(ctx, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]creditapp.CreditResponse), args.Error(1)
}

const creditC1 = `{
	"NumeroCredito": "C1",
	"NumeroNfse": "N1",
	"DataConstituicao": "2024-02-25T00:00:00Z",
	"ValorIssqn": 10.25,
	"TipoCredito": "ISSQN",
	"SimplesNacional": "Sim",
	"Aliquota": 5,
	"ValorFaturado": 205,
	"ValorDeducao": 0,
	"BaseCalculo": 205
}`

func setupCreditRouter(t *testing.T, api CreditAPI) *gin.Engine {
	t.Helper()
	require.NoError(t, middleware.SetupValidator())

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(middleware.RequestID())
	router.NewRouter(engine).Register(NewCreditHandler(api).Routes()).Setup()
	return engine
}

func doRequest(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

const integratePath = "/api/creditos/integrar-credito-constituido"

func TestCreditHandler_Integrate(t *testing.T) {
	t.Run("publishes every credit and answers 202", func(t *testing.T) {
		api := new(mockCreditAPI)
		api.On("Integrate", mock.Anything, mock.MatchedBy(func(in []creditapp.IntegrateCreditInput) bool {
			return len(in) == 2 &&
				in[0].CreditNumber == "C1" &&
				in[0].SimplifiedRegime == "Sim" &&
				in[0].TaxValue.Equal(decimal.RequireFromString("10.25")) &&
				in[0].ConstitutedAt.Equal(time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC)) &&
				in[1].CreditNumber == "C2"
		})).Return(2, nil)

		engine := setupCreditRouter(t, api)
		second := strings.Replace(creditC1, `"C1"`, `"C2"`, 1)
		w := doRequest(engine, http.MethodPost, integratePath, "["+creditC1+","+second+"]")

		assert.Equal(t, http.StatusAccepted, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, map[string]any{"published": float64(2)}, resp.Data)
		api.AssertExpectations(t)
	})

	t.Run("field names are case-insensitive", func(t *testing.T) {
		api := new(mockCreditAPI)
		api.On("Integrate", mock.Anything, mock.MatchedBy(func(in []creditapp.IntegrateCreditInput) bool {
			return len(in) == 1 && in[0].CreditNumber == "C9" && in[0].SimplifiedRegime == "não"
		})).Return(1, nil)

		engine := setupCreditRouter(t, api)
		body := `[{"numeroCredito":"C9","numeronfse":"N9","tipoCredito":"ISSQN","simplesNacional":"não"}]`
		w := doRequest(engine, http.MethodPost, integratePath, body)

		assert.Equal(t, http.StatusAccepted, w.Code)
		api.AssertExpectations(t)
	})

	t.Run("rejects an empty array", func(t *testing.T) {
		api := new(mockCreditAPI)
		engine := setupCreditRouter(t, api)

		w := doRequest(engine, http.MethodPost, integratePath, `[]`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, decodeResponse(t, w).Error.Code)
		api.AssertNotCalled(t, "Integrate", mock.Anything, mock.Anything)
	})

	t.Run("rejects a body that is not an array", func(t *testing.T) {
		api := new(mockCreditAPI)
		engine := setupCreditRouter(t, api)

		w := doRequest(engine, http.MethodPost, integratePath, creditC1)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeResponse(t, w).Error.Code)
	})

	t.Run("rejects an unparseable timestamp", func(t *testing.T) {
		api := new(mockCreditAPI)
		engine := setupCreditRouter(t, api)

		body := "[" + strings.Replace(creditC1, "2024-02-25T00:00:00Z", "yesterday", 1) + "]"
		w := doRequest(engine, http.MethodPost, integratePath, body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeResponse(t, w).Error.Code)
	})

	t.Run("validates every item before publishing", func(t *testing.T) {
		api := new(mockCreditAPI)
		engine := setupCreditRouter(t, api)

		bad := strings.Replace(creditC1, `"Sim"`, `"Talvez"`, 1)
		w := doRequest(engine, http.MethodPost, integratePath, "["+creditC1+","+bad+"]")

		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "[1].SimplesNacional", resp.Error.Details[0].Field)
		api.AssertNotCalled(t, "Integrate", mock.Anything, mock.Anything)
	})

	t.Run("broker failure answers 502 with the published count", func(t *testing.T) {
		api := new(mockCreditAPI)
		api.On("Integrate", mock.Anything, mock.Anything).
			Return(1, &creditapp.PublishError{Published: 1, CreditNumber: "C2", Err: errors.New("leader not available")})

		engine := setupCreditRouter(t, api)
		second := strings.Replace(creditC1, `"C1"`, `"C2"`, 1)
		w := doRequest(engine, http.MethodPost, integratePath, "["+creditC1+","+second+"]")

		assert.Equal(t, http.StatusBadGateway, w.Code)
		resp := decodeResponse(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodePublishFailed, resp.Error.Code)
		assert.Equal(t, map[string]any{"published": float64(1)}, resp.Data)
	})
}

func TestCreditHandler_ListByInvoiceNumber(t *testing.T) {
	t.Run("returns the credits of the invoice", func(t *testing.T) {
		api := new(mockCreditAPI)
		api.On("ListByInvoiceNumber", mock.Anything, "N1").Return([]creditapp.CreditResponse{
			{NumeroCredito: "C1", NumeroNfse: "N1", SimplesNacional: "Sim"},
			{NumeroCredito: "C2", NumeroNfse: "N1", SimplesNacional: "Não"},
		}, nil)

		w := doRequest(setupCreditRouter(t, api), http.MethodGet, "/api/creditos/N1", "")

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.([]any)
		require.Len(t, data, 2)
		assert.Equal(t, "Não", data[1].(map[string]any)["simplesNacional"])
	})

	t.Run("empty invoice yields an empty list", func(t *testing.T) {
		api := new(mockCreditAPI)
		api.On("ListByInvoiceNumber", mock.Anything, "N0").Return(nil, nil)

		w := doRequest(setupCreditRouter(t, api), http.MethodGet, "/api/creditos/N0", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
	})
}

func TestCreditHandler_GetByCreditNumber(t *testing.T) {
	t.Run("returns the credit", func(t *testing.T) {
		api := new(mockCreditAPI)
		api.On("GetByCreditNumber", mock.Anything, "C1").
			Return(&creditapp.CreditResponse{NumeroCredito: "C1", SimplesNacional: "Sim"}, nil)

		w := doRequest(setupCreditRouter(t, api), http.MethodGet, "/api/creditos/credito/C1", "")

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "C1", data["numeroCredito"])
	})

	t.Run("unknown credit is 404", func(t *testing.T) {
		api := new(mockCreditAPI)
		api.On("GetByCreditNumber", mock.Anything, "C404").Return(nil, shared.ErrNotFound)

		w := doRequest(setupCreditRouter(t, api), http.MethodGet, "/api/creditos/credito/C404", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decodeResponse(t, w).Error.Code)
	})

	t.Run("storage failure is 500", func(t *testing.T) {
		api := new(mockCreditAPI)
		api.On("GetByCreditNumber", mock.Anything, "C1").Return(nil, errors.New("connection reset"))

		w := doRequest(setupCreditRouter(t, api), http.MethodGet, "/api/creditos/credito/C1", "")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
		assert.NotContains(t, resp.Error.Message, "connection reset")
	})
}
