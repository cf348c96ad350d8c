package http

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/batch"
	"github.com/mrlokans/mimeroute/internal/database/jobs"
	"github.com/mrlokans/mimeroute/internal/entities"
	"github.com/mrlokans/mimeroute/internal/tasks"
	"github.com/mrlokans/mimeroute/internal/utils"
)

// JobsController queues conversions for background execution.
type JobsController struct {
	jobs   JobStore
	queue  TaskQueue
	logger *zap.Logger
}

// NewJobsController creates a new JobsController.
func NewJobsController(store JobStore, queue TaskQueue, logger *zap.Logger) *JobsController {
	return &JobsController{jobs: store, queue: queue, logger: logger}
}

// Create handles POST /api/jobs
// Stores the request as a pending job and enqueues it.
func (jc *JobsController) Create(c *gin.Context) {
	req, ok := bindConversionRequest(c)
	if !ok {
		return
	}

	items := req.objects()
	if err := batch.Validate(items, req.Target); err != nil {
		respondConversionError(c, jc.logger, err)
		return
	}

	encoded, err := batch.EncodeItems(items)
	if err != nil {
		respondInternalError(c, jc.logger, err, "encode job items")
		return
	}

	job := &entities.ConversionJob{
		ID:         uuid.NewString(),
		TargetType: req.Target,
		FolderID:   req.FolderID,
		Strict:     req.Strict,
		Items:      encoded,
		ItemCount:  len(items),
	}
	if err := jc.jobs.Create(job); err != nil {
		respondInternalError(c, jc.logger, err, "create job")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := jc.queue.Enqueue(ctx, tasks.ConvertJobTask{JobID: job.ID}); err != nil {
		_ = jc.jobs.Fail(job.ID, "failed to enqueue: "+err.Error())
		respondInternalError(c, jc.logger, err, "enqueue job")
		return
	}

	jc.logger.Info("job queued", zap.String("job_id", job.ID), zap.Int("items", job.ItemCount))
	c.JSON(http.StatusAccepted, job)
}

// Get handles GET /api/jobs/:id
func (jc *JobsController) Get(c *gin.Context) {
	job, err := jc.jobs.Get(c.Param("id"))
	if errors.Is(err, jobs.ErrNotFound) {
		respondNotFound(c, "job")
		return
	}
	if err != nil {
		respondInternalError(c, jc.logger, err, "get job")
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetOutput handles GET /api/jobs/:id/outputs/:index
// Blob outputs are served as raw content; file outputs as JSON.
func (jc *JobsController) GetOutput(c *gin.Context) {
	index, ok := parseIndexParam(c, "index")
	if !ok {
		return
	}

	out, err := jc.jobs.GetOutput(c.Param("id"), index)
	if errors.Is(err, jobs.ErrNotFound) {
		respondNotFound(c, "output")
		return
	}
	if err != nil {
		respondInternalError(c, jc.logger, err, "get job output")
		return
	}

	switch out.Kind {
	case entities.OutputKindBlob:
		name := utils.SanitizeFilename(out.Name, "output-"+strconv.Itoa(index))
		if m := mimetype.Lookup(out.ContentType); m != nil {
			name = utils.WithExtension(name, m.Extension())
		}
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		c.Data(http.StatusOK, out.ContentType, out.Data)
	case entities.OutputKindFile:
		c.JSON(http.StatusOK, out)
	default:
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "output not available", Details: out.ErrorMsg})
	}
}
