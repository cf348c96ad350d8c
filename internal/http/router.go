package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/auth"
)

// DefaultMaxBodyBytes bounds inline blob uploads.
const DefaultMaxBodyBytes = 32 << 20

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	router := gin.New()
	router.Use(LoggerMiddleware(logger.Named("http")))
	router.Use(gin.Recovery())

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())

	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	}

	health := NewHealthController(cfg.Database, cfg.TokenState, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := router.Group("/api")
	api.Use(BodyLimitMiddleware(maxBody))

	if cfg.Converter != nil {
		conversions := NewConversionsController(cfg.Converter, logger)
		api.GET("/conversions", conversions.ListSupported)
		api.POST("/conversions/check", conversions.Check)
		api.POST("/conversions", conversions.Convert)
	}

	if cfg.Jobs != nil && cfg.Queue != nil {
		jobs := NewJobsController(cfg.Jobs, cfg.Queue, logger)
		api.POST("/jobs", jobs.Create)
		api.GET("/jobs/:id", jobs.Get)
		api.GET("/jobs/:id/outputs/:index", jobs.GetOutput)
	}

	if cfg.Thumbnails != nil {
		thumbs := NewThumbnailsController(cfg.Thumbnails, cfg.ThumbnailWidth, cfg.MaxThumbnailIDs, logger)
		api.GET("/thumbnails", thumbs.List)
	}

	if cfg.Audit != nil {
		auditController := NewAuditController(cfg.Audit, logger)
		api.GET("/audit", auditController.ListEvents)
	}

	return router
}
