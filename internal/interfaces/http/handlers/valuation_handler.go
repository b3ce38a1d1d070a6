package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nadlantech/appraisal-engine/internal/application/appraisal"
	"github.com/nadlantech/appraisal-engine/internal/domain/property"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

// ValuationHandler serves the valuation, override, and ingestion endpoints.
type ValuationHandler struct {
	service appraisal.Service
}

// NewValuationHandler constructs a ValuationHandler.
func NewValuationHandler(service appraisal.Service) *ValuationHandler {
	return &ValuationHandler{service: service}
}

// Valuate handles POST /api/v1/valuations.
func (h *ValuationHandler) Valuate(c *gin.Context) {
	var input appraisal.ValuateInput
	if !bindJSON(c, &input) {
		return
	}

	result, err := h.service.Valuate(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// Override handles POST /api/v1/valuations/overrides. The acting appraiser
// comes from the X-Appraiser-ID header when the body omits it.
func (h *ValuationHandler) Override(c *gin.Context) {
	var input appraisal.OverrideInput
	if !bindJSON(c, &input) {
		return
	}
	if input.AppraiserID == "" {
		input.AppraiserID = common.AppraiserID(c.GetHeader("X-Appraiser-ID"))
	}

	result, err := h.service.Override(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// AuditTrail handles GET /api/v1/valuations/audit/:comparableID.
func (h *ValuationHandler) AuditTrail(c *gin.Context) {
	comparableID := c.Param("comparableID")

	trail, err := h.service.AuditTrail(c.Request.Context(), comparableID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, trail)
}

// ingestRequest wraps the transaction batch body.
type ingestRequest struct {
	Transactions []property.FeaturePayload `json:"transactions"`
}

// ingestResponse reports the batch outcome.
type ingestResponse struct {
	Received int `json:"received"`
	Written  int `json:"written"`
}

// Ingest handles POST /api/v1/transactions.
func (h *ValuationHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Transactions) == 0 {
		respondError(c, errors.New(errors.ErrCodeBadRequest, "transactions list is empty"))
		return
	}

	written, err := h.service.IngestTransactions(c.Request.Context(), req.Transactions)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, ingestResponse{Received: len(req.Transactions), Written: written})
}
