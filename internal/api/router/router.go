package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storeloop/catalog-orchestrator/internal/api/handler"
	"github.com/storeloop/catalog-orchestrator/internal/telemetry"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "catalog-orchestrator-api",
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "catalog-orchestrator-api",
		})
	})

	r.GET("/metrics", gin.WrapH(telemetry.Handler()))

	jobHandler := handler.NewJobHandler(deps)
	videoHandler := handler.NewVideoHandler(deps)
	auditHandler := handler.NewAuditHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/syncs - Start a catalog sync
		v1.POST("/syncs", jobHandler.StartSync)

		// POST /api/v1/ai-scans - Start an AI scan
		v1.POST("/ai-scans", jobHandler.StartAIScan)

		// GET /api/v1/jobs/:job_id - Get job details with children
		v1.GET("/jobs/:job_id", jobHandler.GetJob)

		// POST /api/v1/videos - Request a product video render
		v1.POST("/videos", videoHandler.CreateVideo)

		audit := v1.Group("/webhook-audit")
		{
			// GET /api/v1/webhook-audit - List audit records
			audit.GET("", auditHandler.ListAudit)

			// GET /api/v1/webhook-audit/:id - Get one audit record
			audit.GET("/:id", auditHandler.GetAudit)
		}
	}

	// Provider callbacks, reachable from trusted networks only
	internal := r.Group("/internal")
	{
		internal.POST("/videos/success", videoHandler.VideoSuccess)
		internal.POST("/videos/failure", videoHandler.VideoFailure)
	}

	return r
}
