package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/nadlantech/appraisal-engine/internal/interfaces/http/handlers"
	"github.com/nadlantech/appraisal-engine/internal/interfaces/http/middleware"
)

func TestRouter_ProbesAndMetrics(t *testing.T) {
	r := NewRouter(RouterConfig{
		HealthHandler: handlers.NewHealthHandler("test"),
		Logger:        logging.NewNopLogger(),
		Metrics:       prometheus.NewMetrics("appraisal_test"),
		Mode:          "test",
	})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_NoRoute(t *testing.T) {
	r := NewRouter(RouterConfig{Mode: "test"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "route not found")
}

func TestRouter_RequestIDHeaderAlwaysSet(t *testing.T) {
	r := NewRouter(RouterConfig{Mode: "test"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = []string{"https://app.example.com"}
	r := NewRouter(RouterConfig{Mode: "test", CORS: &cors})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/valuations", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	// An origin outside the allow list gets no CORS grant.
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/valuations", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
