package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/database/audit"
	"github.com/mrlokans/mimeroute/internal/entities"
)

type AuditController struct {
	audit  AuditReader
	logger *zap.Logger
}

func NewAuditController(reader AuditReader, logger *zap.Logger) *AuditController {
	return &AuditController{
		audit:  reader,
		logger: logger,
	}
}

// ListEvents returns recorded audit events, most recent first.
// GET /api/audit?batch_id=&type=&status=&limit=&offset=
func (ac *AuditController) ListEvents(c *gin.Context) {
	limit, offset := parsePagination(c, 50, 200)

	filter := audit.Filter{
		BatchID:   c.Query("batch_id"),
		EventType: entities.AuditEventType(c.Query("type")),
		Status:    entities.AuditStatus(c.Query("status")),
	}

	events, total, err := ac.audit.GetEvents(filter, limit, offset)
	if err != nil {
		respondInternalError(c, ac.logger, err, "list audit events")
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:    events,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(events)) < total,
	})
}
