package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	creditapp "github.com/credit/backend/internal/application/credit"
	"github.com/credit/backend/internal/infrastructure/logger"
	"github.com/credit/backend/internal/interfaces/http/dto"
	"github.com/credit/backend/internal/interfaces/http/middleware"
	"github.com/credit/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// CreditAPI is the application surface the credit endpoints call
type CreditAPI interface {
	Integrate(ctx context.Context, inputs []creditapp.IntegrateCreditInput) (int, error)
	GetByCreditNumber(ctx context.Context, creditNumber string) (*creditapp.CreditResponse, error)
	ListByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]creditapp.CreditResponse, error)
}

// CreditHandler handles the /creditos endpoints
type CreditHandler struct {
	BaseHandler
	service CreditAPI
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(service CreditAPI) *CreditHandler {
	return &CreditHandler{service: service}
}

// Routes returns the credit route group
func (h *CreditHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("creditos", "/creditos").
		POST("/integrar-credito-constituido", h.IntegrateCredits).
		GET("/credito/:numeroCredito", h.GetByCreditNumber).
		GET("/:numeroNfse", h.ListByInvoiceNumber)
}

// IntegrateCredits publishes a batch of credits for asynchronous persistence.
// Credits are published in order; on a broker failure the response is 502
// and carries how many were already published.
//
//	@ID				integrateCredits
//	@Summary		Integrate constituted credits
//	@Description	Validates every credit and publishes them in order to the ingestion topic
//	@Tags			creditos
//	@Accept			json
//	@Produce		json
//	@Param			credits	body		[]IntegrateCreditRequest	true	"Credits to integrate"
//	@Success		202		{object}	dto.Response{data=dto.IntegrateResult}
//	@Failure		400		{object}	dto.Response
//	@Failure		413		{object}	dto.Response
//	@Failure		502		{object}	dto.Response{data=dto.IntegrateResult}
//	@Router			/creditos/integrar-credito-constituido [post]
func (h *CreditHandler) IntegrateCredits(c *gin.Context) {
	var items []IntegrateCreditRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&items); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		h.BadRequest(c, dto.ErrCodeInvalidJSON, "Request body must be a JSON array of credits: "+err.Error())
		return
	}
	if len(items) == 0 {
		h.BadRequest(c, dto.ErrCodeInvalidInput, "At least one credit is required")
		return
	}

	var details []dto.ValidationDetail
	for i := range items {
		if err := binding.Validator.ValidateStruct(&items[i]); err != nil {
			details = append(details, middleware.ValidationDetails(err, fmt.Sprintf("[%d].", i))...)
		}
	}
	if len(details) > 0 {
		h.ValidationError(c, details)
		return
	}

	inputs := make([]creditapp.IntegrateCreditInput, len(items))
	for i, item := range items {
		inputs[i] = item.ToInput()
	}

	published, err := h.service.Integrate(c.Request.Context(), inputs)
	if err != nil {
		var pubErr *creditapp.PublishError
		if errors.As(err, &pubErr) {
			logger.FromContext(c.Request.Context()).Warn("credit integration interrupted",
				zap.Int("published", pubErr.Published),
				zap.Int("requested", len(inputs)),
				zap.String("credit_number", pubErr.CreditNumber),
				zap.Error(pubErr.Err),
			)
			resp := dto.NewErrorResponseWithRequestID(dto.ErrCodePublishFailed, "Failed to publish credits to the broker", middleware.GetRequestID(c))
			resp.Data = dto.IntegrateResult{Published: pubErr.Published}
			c.JSON(http.StatusBadGateway, resp)
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, dto.IntegrateResult{Published: published})
}

// ListByInvoiceNumber returns every persisted credit of an invoice
//
//	@ID				listCreditsByInvoice
//	@Summary		List credits of an invoice
//	@Tags			creditos
//	@Produce		json
//	@Param			numeroNfse	path		string	true	"Invoice number"
//	@Success		200			{object}	dto.Response{data=[]creditapp.CreditResponse}
//	@Failure		500			{object}	dto.Response
//	@Router			/creditos/{numeroNfse} [get]
func (h *CreditHandler) ListByInvoiceNumber(c *gin.Context) {
	credits, err := h.service.ListByInvoiceNumber(c.Request.Context(), c.Param("numeroNfse"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if credits == nil {
		credits = []creditapp.CreditResponse{}
	}
	h.Success(c, credits)
}

// GetByCreditNumber returns one persisted credit or 404
//
//	@ID				getCreditByNumber
//	@Summary		Get a credit by its number
//	@Tags			creditos
//	@Produce		json
//	@Param			numeroCredito	path		string	true	"Credit number"
//	@Success		200				{object}	dto.Response{data=creditapp.CreditResponse}
//	@Failure		404				{object}	dto.Response
//	@Router			/creditos/credito/{numeroCredito} [get]
func (h *CreditHandler) GetByCreditNumber(c *gin.Context) {
	credit, err := h.service.GetByCreditNumber(c.Request.Context(), c.Param("numeroCredito"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, credit)
}
