package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nadlantech/appraisal-engine/internal/application/appraisal"
	"github.com/nadlantech/appraisal-engine/internal/application/reporting"
)

// ReportHandler serves report drafting and prompt assembly.
type ReportHandler struct {
	service appraisal.Service
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(service appraisal.Service) *ReportHandler {
	return &ReportHandler{service: service}
}

// Draft handles POST /api/v1/reports/draft.
func (h *ReportHandler) Draft(c *gin.Context) {
	var req appraisal.ReportRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.GenerateReport(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// Prompt handles POST /api/v1/reports/prompt. It returns the grounded prompt
// bundle without calling any model.
func (h *ReportHandler) Prompt(c *gin.Context) {
	var in reporting.Input
	if !bindJSON(c, &in) {
		return
	}

	bundle, err := h.service.BuildPromptBundle(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, bundle)
}

// Validate handles POST /api/v1/reports/validate: consistency checks only,
// no draft generation.
func (h *ReportHandler) Validate(c *gin.Context) {
	var in reporting.Input
	if !bindJSON(c, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		respondError(c, err)
		return
	}

	findings := reporting.ValidateConsistency(in)
	respond(c, http.StatusOK, gin.H{
		"validations":           findings,
		"readyForFinalApproval": reporting.ReadyForFinalApproval(findings),
	})
}
