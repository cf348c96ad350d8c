package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/thumbnails"
)

// ThumbnailResponse is one rendered thumbnail; Data is base64 encoded.
type ThumbnailResponse struct {
	FileID      string `json:"file_id"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// ThumbnailsController serves file thumbnails.
type ThumbnailsController struct {
	fetcher      ThumbnailFetcher
	defaultWidth int
	maxIDs       int
	logger       *zap.Logger
}

func NewThumbnailsController(fetcher ThumbnailFetcher, defaultWidth, maxIDs int, logger *zap.Logger) *ThumbnailsController {
	if defaultWidth <= 0 {
		defaultWidth = thumbnails.DefaultWidth
	}
	if maxIDs <= 0 {
		maxIDs = 50
	}
	return &ThumbnailsController{fetcher: fetcher, defaultWidth: defaultWidth, maxIDs: maxIDs, logger: logger}
}

// List handles GET /api/thumbnails?ids=a,b&width=400
// Entries are null for files whose thumbnail could not be fetched.
func (tc *ThumbnailsController) List(c *gin.Context) {
	ids := splitIDs(c.QueryArray("ids"))
	if len(ids) > tc.maxIDs {
		respondBadRequest(c, "too many ids, maximum is "+strconv.Itoa(tc.maxIDs))
		return
	}

	width := tc.defaultWidth
	if raw := c.Query("width"); raw != "" {
		w, err := strconv.Atoi(raw)
		if err != nil || w <= 0 {
			respondBadRequest(c, "invalid width")
			return
		}
		width = w
	}

	blobs, err := tc.fetcher.FetchAll(c.Request.Context(), ids, width)
	if errors.Is(err, thumbnails.ErrNoFileIDs) {
		respondBadRequest(c, "ids is required")
		return
	}
	if err != nil {
		respondInternalError(c, tc.logger, err, "fetch thumbnails")
		return
	}

	out := make([]*ThumbnailResponse, len(blobs))
	for i, b := range blobs {
		if b == nil {
			continue
		}
		out[i] = &ThumbnailResponse{FileID: ids[i], Name: b.Name, ContentType: b.ContentType, Data: b.Data}
	}
	c.JSON(http.StatusOK, gin.H{"thumbnails": out})
}

// splitIDs accepts both repeated and comma-separated ids.
func splitIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
