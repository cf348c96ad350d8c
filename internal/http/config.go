package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/auth"
	"github.com/mrlokans/mimeroute/internal/database"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. Optional dependencies disable their routes when nil.
type RouterConfig struct {
	// Core dependencies
	Converter ConversionService
	Database  *database.Database
	Logger    *zap.Logger

	// TokenState reports the backend token on /health (optional)
	TokenState TokenState

	// Queued jobs (optional)
	Jobs  JobStore
	Queue TaskQueue

	// Thumbnails (optional)
	Thumbnails      ThumbnailFetcher
	ThumbnailWidth  int
	MaxThumbnailIDs int

	// Audit log (optional)
	Audit AuditReader

	// Prometheus handler served at /metrics (optional)
	Metrics http.Handler

	// Authentication (optional)
	AuthMiddleware *auth.Middleware

	// MaxBodyBytes limits request bodies carrying inline content. Default: 32 MiB
	MaxBodyBytes int64

	// Application info
	Version string
}
