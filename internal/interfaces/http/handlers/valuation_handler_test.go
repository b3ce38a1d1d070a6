package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadlantech/appraisal-engine/internal/application/appraisal"
	"github.com/nadlantech/appraisal-engine/internal/application/reporting"
	"github.com/nadlantech/appraisal-engine/internal/domain/adjustment"
	"github.com/nadlantech/appraisal-engine/internal/domain/property"
	"github.com/nadlantech/appraisal-engine/internal/domain/valuation"
	"github.com/nadlantech/appraisal-engine/internal/intelligence/reportllm"
	"github.com/nadlantech/appraisal-engine/internal/interfaces/http/middleware"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

// fakeService scripts appraisal.Service responses per test.
type fakeService struct {
	valuateResult *appraisal.ValuateResult
	valuateErr    error
	lastValuate   *appraisal.ValuateInput

	overrideResult *appraisal.OverrideResult
	overrideErr    error
	lastOverride   *appraisal.OverrideInput

	trail    []adjustment.ManualOverrideEvent
	trailErr error

	reportResult *appraisal.ReportResult
	reportErr    error

	ingested int
}

func (f *fakeService) Valuate(ctx context.Context, input *appraisal.ValuateInput) (*appraisal.ValuateResult, error) {
	f.lastValuate = input
	return f.valuateResult, f.valuateErr
}

func (f *fakeService) Override(ctx context.Context, input *appraisal.OverrideInput) (*appraisal.OverrideResult, error) {
	f.lastOverride = input
	return f.overrideResult, f.overrideErr
}

func (f *fakeService) AuditTrail(ctx context.Context, comparableID string) ([]adjustment.ManualOverrideEvent, error) {
	return f.trail, f.trailErr
}

func (f *fakeService) GenerateReport(ctx context.Context, req *appraisal.ReportRequest) (*appraisal.ReportResult, error) {
	return f.reportResult, f.reportErr
}

func (f *fakeService) BuildPromptBundle(ctx context.Context, in reporting.Input) (*reportllm.PromptBundle, error) {
	bundle, err := reportllm.BuildGroundedPromptBundle(in)
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (f *fakeService) IngestTransactions(ctx context.Context, payloads []property.FeaturePayload) (int, error) {
	f.ingested += len(payloads)
	return len(payloads), nil
}

func testRouter(svc appraisal.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())

	vh := NewValuationHandler(svc)
	api := r.Group("/api/v1")
	api.POST("/valuations", vh.Valuate)
	api.POST("/valuations/overrides", vh.Override)
	api.GET("/valuations/audit/:comparableID", vh.AuditTrail)
	api.POST("/transactions", vh.Ingest)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestValuate_OK(t *testing.T) {
	svc := &fakeService{
		valuateResult: &appraisal.ValuateResult{
			RequestID: "val-1",
			SubjectID: "subj-1",
			Valuation: valuation.Output{
				Strategy:   valuation.StrategyHedonic,
				Range:      valuation.Range{Low: 1400000, Mid: 1500000, High: 1600000},
				Confidence: 80,
				UsedCount:  6,
			},
			GeneratedAt: common.Timestamp(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)),
		},
	}
	r := testRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/v1/valuations", gin.H{
		"subject": gin.H{"id": "subj-1", "city": "Haifa", "sizeSqm": 85, "propertyType": "apartment"},
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp common.APIResponse[appraisal.ValuateResult]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "val-1", resp.Data.RequestID)
	assert.NotEmpty(t, resp.RequestID)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "subj-1", svc.lastValuate.Subject.ID)
}

func TestValuate_MalformedBody(t *testing.T) {
	r := testRouter(&fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/valuations", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp common.APIResponse[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, string(errors.ErrCodeBadRequest), resp.Error.Code)
}

func TestValuate_ErrorCodeMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown strategy", errors.New(errors.ErrCodeValuationStrategyUnknown, "unknown strategy"), http.StatusBadRequest},
		{"empty pool", errors.New(errors.ErrCodePoolEmpty, "no pool"), http.StatusBadRequest},
		{"database failure", errors.New(errors.ErrCodeDatabaseError, "connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := testRouter(&fakeService{valuateErr: tc.err})
			w := doJSON(t, r, http.MethodPost, "/api/v1/valuations", gin.H{}, nil)
			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestValuate_InternalErrorBodyIsOpaque(t *testing.T) {
	r := testRouter(&fakeService{valuateErr: errors.New(errors.ErrCodeDatabaseError, "password=hunter2 rejected")})

	w := doJSON(t, r, http.MethodPost, "/api/v1/valuations", gin.H{}, nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp common.APIResponse[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "internal error", resp.Error.Message)
	assert.NotContains(t, w.Body.String(), "hunter2")
}

func TestOverride_AppraiserFromHeader(t *testing.T) {
	svc := &fakeService{overrideResult: &appraisal.OverrideResult{}}
	r := testRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/v1/valuations/overrides", gin.H{
		"comparableId": "comp-a",
		"patch":        gin.H{"view": 0.01},
	}, map[string]string{"X-Appraiser-ID": "appr-9"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, common.AppraiserID("appr-9"), svc.lastOverride.AppraiserID)
}

func TestAuditTrail_OK(t *testing.T) {
	svc := &fakeService{trail: []adjustment.ManualOverrideEvent{
		{ComparableID: "comp-a", Field: "view", OldValue: 0.018, NewValue: 0.02},
	}}
	r := testRouter(svc)

	w := doJSON(t, r, http.MethodGet, "/api/v1/valuations/audit/comp-a", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp common.APIResponse[[]adjustment.ManualOverrideEvent]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "view", resp.Data[0].Field)
}

func TestIngest_OK(t *testing.T) {
	svc := &fakeService{}
	r := testRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/v1/transactions", gin.H{
		"transactions": []gin.H{
			{"id": "tx-1", "city": "Haifa", "salePrice": 1500000},
			{"id": "tx-2", "city": "Haifa", "salePrice": 1600000},
		},
	}, nil)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, svc.ingested)
}

func TestIngest_EmptyBatch(t *testing.T) {
	r := testRouter(&fakeService{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/transactions", gin.H{"transactions": []gin.H{}}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
