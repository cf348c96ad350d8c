package http

import (
	"errors"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/batch"
	"github.com/mrlokans/mimeroute/internal/storage"
)

// ConversionRequest is the body of the conversion and job endpoints.
// Blob content is base64 encoded in the data field.
type ConversionRequest struct {
	Items    []batch.Item `json:"items"`
	Target   string       `json:"target"`
	FolderID string       `json:"folder_id,omitempty"`
	Strict   bool         `json:"strict,omitempty"`
}

// objects converts the request items, sniffing the type of untyped uploads.
func (r ConversionRequest) objects() []storage.Object {
	objects := make([]storage.Object, len(r.Items))
	for i, item := range r.Items {
		if item.FileID == "" && item.ContentType == "" && len(item.Data) > 0 {
			item.ContentType = mimetype.Detect(item.Data).String()
		}
		objects[i] = item.Object()
	}
	return objects
}

// ResultResponse describes one converted item.
type ResultResponse struct {
	Reference       batch.Item  `json:"reference"`
	Output          *batch.Item `json:"output"`
	IsPossible      bool        `json:"is_possible"`
	ConversionRoute []string    `json:"conversion_route"`
	Error           string      `json:"error,omitempty"`
}

// ConversionResponse is returned by the check and convert endpoints.
type ConversionResponse struct {
	Results []ResultResponse `json:"results"`
	Error   string           `json:"error,omitempty"`
}

func toResultResponses(results []batch.Result) []ResultResponse {
	out := make([]ResultResponse, len(results))
	for i, res := range results {
		r := ResultResponse{
			Reference:       batch.ItemFromObject(res.Reference),
			IsPossible:      res.IsPossible,
			ConversionRoute: res.ConversionRoute,
		}
		if r.ConversionRoute == nil {
			r.ConversionRoute = []string{}
		}
		if res.Output != nil {
			item := batch.ItemFromObject(res.Output)
			r.Output = &item
		}
		if res.Err != nil {
			r.Error = res.Err.Error()
		}
		out[i] = r
	}
	return out
}

// ConversionsController exposes the batch service over HTTP.
type ConversionsController struct {
	service ConversionService
	logger  *zap.Logger
}

func NewConversionsController(service ConversionService, logger *zap.Logger) *ConversionsController {
	return &ConversionsController{service: service, logger: logger}
}

// ListSupported handles GET /api/conversions
// Returns every direct source -> target pair the backend offers.
func (cc *ConversionsController) ListSupported(c *gin.Context) {
	pairs, err := cc.service.ListSupportedConversions(c.Request.Context())
	if err != nil {
		respondConversionError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversions": pairs})
}

// Check handles POST /api/conversions/check
// Reports feasibility and routes without touching stored files.
func (cc *ConversionsController) Check(c *gin.Context) {
	req, ok := bindConversionRequest(c)
	if !ok {
		return
	}

	results, err := cc.service.Check(c.Request.Context(), req.objects(), req.Target)
	if err != nil {
		respondConversionError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, ConversionResponse{Results: toResultResponses(results)})
}

// Convert handles POST /api/conversions
// Runs the batch synchronously. A strict batch that stops early answers 422
// with the results gathered so far.
func (cc *ConversionsController) Convert(c *gin.Context) {
	req, ok := bindConversionRequest(c)
	if !ok {
		return
	}

	results, err := cc.service.Convert(c.Request.Context(), req.objects(), req.Target, batch.Options{
		FolderID: req.FolderID,
		Strict:   req.Strict,
	})
	if err != nil && results == nil {
		respondConversionError(c, cc.logger, err)
		return
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ConversionResponse{
			Results: toResultResponses(results),
			Error:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, ConversionResponse{Results: toResultResponses(results)})
}

func bindConversionRequest(c *gin.Context) (ConversionRequest, bool) {
	var req ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(c, http.StatusRequestEntityTooLarge, "request body too large")
			return req, false
		}
		respondBadRequest(c, "invalid request body: "+err.Error())
		return req, false
	}
	return req, true
}
