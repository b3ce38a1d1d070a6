package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadlantech/appraisal-engine/internal/application/appraisal"
	"github.com/nadlantech/appraisal-engine/internal/application/reporting"
	"github.com/nadlantech/appraisal-engine/internal/interfaces/http/middleware"
)

func reportRouter(svc appraisal.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())

	rh := NewReportHandler(svc)
	api := r.Group("/api/v1")
	api.POST("/reports/draft", rh.Draft)
	api.POST("/reports/prompt", rh.Prompt)
	api.POST("/reports/validate", rh.Validate)
	return r
}

func validReportBody() gin.H {
	return gin.H{
		"property": gin.H{"id": "subj-1", "address": "Herzl 10", "city": "Haifa"},
		"comparables": []gin.H{
			{"id": "comp-a", "adjustedPrice": 1500000},
			{"id": "comp-b", "adjustedPrice": 1510000},
			{"id": "comp-c", "adjustedPrice": 1490000},
		},
		"valuationRange": gin.H{"low": 1420000, "mid": 1500000, "high": 1580000},
		"confidence":     74,
		"template": gin.H{
			"templateId":        "standard-appraisal",
			"language":          "en",
			"mandatorySections": []string{"valuation-conclusion"},
		},
	}
}

func TestDraft_OK(t *testing.T) {
	svc := &fakeService{reportResult: &appraisal.ReportResult{
		Report: reporting.Report{ID: "rpt-1", ReadyForFinalApproval: true},
	}}
	r := reportRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/v1/reports/draft", gin.H{"input": validReportBody()}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rpt-1")
}

func TestPrompt_OK(t *testing.T) {
	r := reportRouter(&fakeService{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/reports/prompt", validReportBody(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "PROPERTY|")
}

func TestPrompt_InvalidInput(t *testing.T) {
	r := reportRouter(&fakeService{})

	body := validReportBody()
	body["template"] = gin.H{"templateId": "", "language": "en"}
	w := doJSON(t, r, http.MethodPost, "/api/v1/reports/prompt", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateEndpoint_FlagsRangeDisorder(t *testing.T) {
	r := reportRouter(&fakeService{})

	body := validReportBody()
	body["valuationRange"] = gin.H{"low": 1580000, "mid": 1500000, "high": 1420000}
	w := doJSON(t, r, http.MethodPost, "/api/v1/reports/validate", body, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "valuation.range.order")
	assert.Contains(t, w.Body.String(), `"readyForFinalApproval":false`)
}

func TestValidateEndpoint_Ready(t *testing.T) {
	r := reportRouter(&fakeService{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/reports/validate", validReportBody(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"readyForFinalApproval":true`)
}
