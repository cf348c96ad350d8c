package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/mimeroute/internal/database"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// TokenState reports the state of the backend access token.
type TokenState interface {
	IsValid() bool
	ExpiresAt() *time.Time
}

type HealthController struct {
	db      *database.Database
	token   TokenState
	version string
}

// NewHealthController creates a HealthController. db and token may be nil.
func NewHealthController(db *database.Database, token TokenState, version string) *HealthController {
	return &HealthController{
		db:      db,
		token:   token,
		version: version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	// Check database connectivity
	if h.db != nil {
		sqlDB, err := h.db.DB.DB()
		if err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	// The token is refreshed lazily, so an invalid one does not fail the check.
	if h.token != nil {
		switch exp := h.token.ExpiresAt(); {
		case !h.token.IsValid():
			checks["backend_token"] = "not yet acquired"
		case exp != nil:
			checks["backend_token"] = "valid until " + exp.Format(time.RFC3339)
		default:
			checks["backend_token"] = "ok"
		}
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
