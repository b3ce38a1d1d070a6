// Package http assembles the gin route tree and the HTTP server lifecycle.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/nadlantech/appraisal-engine/internal/interfaces/http/handlers"
	"github.com/nadlantech/appraisal-engine/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware dependencies of the
// full route tree.
type RouterConfig struct {
	ValuationHandler *handlers.ValuationHandler
	ReportHandler    *handlers.ReportHandler
	HealthHandler    *handlers.HealthHandler

	CORS    *middleware.CORSConfig
	Logger  logging.Logger
	Metrics *prometheus.Metrics
	Mode    string
}

// NewRouter constructs the complete gin engine: global middleware, public
// probes, the metrics endpoint, and the versioned API group.
func NewRouter(cfg RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogger(cfg.Logger, cfg.Metrics))
	}
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api/v1")
	if h := cfg.ValuationHandler; h != nil {
		api.POST("/valuations", h.Valuate)
		api.POST("/valuations/overrides", h.Override)
		api.GET("/valuations/audit/:comparableID", h.AuditTrail)
		api.POST("/transactions", h.Ingest)
	}
	if h := cfg.ReportHandler; h != nil {
		api.POST("/reports/draft", h.Draft)
		api.POST("/reports/prompt", h.Prompt)
		api.POST("/reports/validate", h.Validate)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}
