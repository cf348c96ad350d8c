package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/batch"
	"github.com/mrlokans/mimeroute/internal/entities"
	"github.com/mrlokans/mimeroute/internal/storage"
)

// JobStore persists queued conversion jobs.
type JobStore interface {
	Get(id string) (*entities.ConversionJob, error)
	MarkRunning(id string) error
	Complete(id string, outputs []entities.JobOutput) error
	Fail(id, msg string) error
}

// BatchConverter runs a conversion batch.
type BatchConverter interface {
	Convert(ctx context.Context, items []storage.Object, target string, opts batch.Options) ([]batch.Result, error)
}

// JobRecorder is notified once a job has finished.
type JobRecorder interface {
	LogJob(jobID, targetType string, items int, err error)
}

// JobCounter counts finished jobs.
type JobCounter interface {
	JobFinished(err error)
}

// ConvertJobTask runs a stored ConversionJob.
type ConvertJobTask struct {
	JobID string `json:"job_id"`
}

// Config returns the queue configuration for conversion jobs.
// Conversions create files on the backend, so a failed job is not retried.
func (t ConvertJobTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "convert_job",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ConvertJobDeps are the collaborators of the convert_job processor.
// Recorder and Counter are optional.
type ConvertJobDeps struct {
	Jobs      JobStore
	Converter BatchConverter
	Recorder  JobRecorder
	Counter   JobCounter
	Logger    *zap.Logger
}

// ConvertJobProcessor creates a processor function for ConvertJobTask.
func ConvertJobProcessor(deps ConvertJobDeps) backlite.QueueProcessor[ConvertJobTask] {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, task ConvertJobTask) error {
		if deps.Jobs == nil || deps.Converter == nil {
			return fmt.Errorf("conversion job processor not configured")
		}

		job, err := deps.Jobs.Get(task.JobID)
		if err != nil {
			return fmt.Errorf("load job %s: %w", task.JobID, err)
		}
		log := logger.With(zap.String("job_id", job.ID), zap.String("target", job.TargetType))

		if job.IsFinished() {
			log.Info("job already finished, skipping", zap.String("status", string(job.Status)))
			return nil
		}

		if err := deps.Jobs.MarkRunning(job.ID); err != nil {
			return fmt.Errorf("mark job %s running: %w", job.ID, err)
		}

		runErr := runJob(ctx, deps, job, log)

		if deps.Recorder != nil {
			deps.Recorder.LogJob(job.ID, job.TargetType, job.ItemCount, runErr)
		}
		if deps.Counter != nil {
			deps.Counter.JobFinished(runErr)
		}
		// The failure is stored on the job; returning it would only make backlite retain the task.
		return nil
	}
}

// runJob converts the job's items and stores the outcome. The returned error
// is the job failure, if any.
func runJob(ctx context.Context, deps ConvertJobDeps, job *entities.ConversionJob, log *zap.Logger) error {
	items, err := batch.DecodeItems(job.Items)
	if err != nil {
		return failJob(deps.Jobs, job.ID, err, log)
	}

	results, convErr := deps.Converter.Convert(ctx, items, job.TargetType, batch.Options{
		FolderID: job.FolderID,
		Strict:   job.Strict,
	})
	if convErr != nil && results == nil {
		return failJob(deps.Jobs, job.ID, convErr, log)
	}

	if err := deps.Jobs.Complete(job.ID, JobOutputs(results)); err != nil {
		log.Error("failed to store job outputs", zap.Error(err))
		return fmt.Errorf("store outputs: %w", err)
	}

	if convErr != nil {
		// Strict batches keep the results gathered before the abort.
		return failJob(deps.Jobs, job.ID, convErr, log)
	}

	log.Info("job completed", zap.Int("items", len(results)))
	return nil
}

func failJob(jobs JobStore, id string, cause error, log *zap.Logger) error {
	log.Error("job failed", zap.Error(cause))
	if err := jobs.Fail(id, cause.Error()); err != nil {
		log.Error("failed to mark job failed", zap.Error(err))
	}
	return cause
}

// JobOutputs converts batch results into rows, one per result.
func JobOutputs(results []batch.Result) []entities.JobOutput {
	outputs := make([]entities.JobOutput, 0, len(results))
	for i, res := range results {
		out := entities.JobOutput{
			ItemIndex: i,
			Kind:      entities.OutputKindNone,
			Route:     strings.Join(res.ConversionRoute, " -> "),
		}

		switch v := res.Output.(type) {
		case storage.FileRef:
			out.Kind = entities.OutputKindFile
			out.FileID = v.ID
			out.Name = v.Name
			out.ContentType = v.MIMEType
		case storage.Blob:
			out.Kind = entities.OutputKindBlob
			out.Name = v.Name
			out.ContentType = v.ContentType
			out.Data = v.Data
		}

		switch {
		case res.Err != nil:
			out.ErrorMsg = res.Err.Error()
		case res.Output == nil && !res.IsPossible:
			out.ErrorMsg = "conversion unsupported"
		}

		outputs = append(outputs, out)
	}
	return outputs
}

// NewConvertJobQueue creates a backlite queue for conversion jobs.
func NewConvertJobQueue(deps ConvertJobDeps) backlite.Queue {
	return backlite.NewQueue(ConvertJobProcessor(deps))
}
