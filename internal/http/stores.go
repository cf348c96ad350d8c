package http

import (
	"context"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/mimeroute/internal/batch"
	"github.com/mrlokans/mimeroute/internal/database/audit"
	"github.com/mrlokans/mimeroute/internal/entities"
	"github.com/mrlokans/mimeroute/internal/storage"
)

// This file consolidates the interfaces HTTP controllers depend on.

// ConversionService runs synchronous conversions.
type ConversionService interface {
	ListSupportedConversions(ctx context.Context) (map[string][]string, error)
	Check(ctx context.Context, items []storage.Object, target string) ([]batch.Result, error)
	Convert(ctx context.Context, items []storage.Object, target string, opts batch.Options) ([]batch.Result, error)
}

// JobStore persists queued conversion jobs.
type JobStore interface {
	Create(job *entities.ConversionJob) error
	Get(id string) (*entities.ConversionJob, error)
	GetOutput(jobID string, index int) (*entities.JobOutput, error)
	Fail(id, msg string) error
}

// TaskQueue enqueues background tasks.
type TaskQueue interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
}

// ThumbnailFetcher renders thumbnails of stored files.
type ThumbnailFetcher interface {
	FetchAll(ctx context.Context, ids []string, width int) ([]*storage.Blob, error)
}

// AuditReader lists recorded audit events.
type AuditReader interface {
	GetEvents(f audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error)
}
