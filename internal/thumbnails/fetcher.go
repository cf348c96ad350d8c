// Package thumbnails retrieves rendered preview images of stored files.
package thumbnails

import (
	"context"
	"errors"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/storage"
)

// DefaultWidth is used when no width is requested.
const DefaultWidth = 1000

// ErrNoFileIDs is returned when FetchAll is called without file IDs.
var ErrNoFileIDs = errors.New("thumbnails can only be retrieved from file ids")

// Fetcher downloads thumbnails for stored files.
type Fetcher struct {
	files  storage.Backend
	source storage.ThumbnailSource
	logger *zap.Logger
}

// NewFetcher creates a Fetcher. files resolves file names, source renders thumbnails.
func NewFetcher(files storage.Backend, source storage.ThumbnailSource, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{files: files, source: source, logger: logger}
}

// FetchAll returns one thumbnail per ID, in order. Slots for files that
// could not be rendered are nil; only a missing ID list is an error.
func (f *Fetcher) FetchAll(ctx context.Context, ids []string, width int) ([]*storage.Blob, error) {
	if len(ids) == 0 {
		return nil, ErrNoFileIDs
	}
	if width <= 0 {
		width = DefaultWidth
	}

	out := make([]*storage.Blob, len(ids))
	for i, id := range ids {
		meta, err := f.files.Metadata(ctx, id)
		if err != nil {
			f.logger.Warn("thumbnail source not found", zap.String("file_id", id), zap.Error(err))
			continue
		}

		data, err := f.source.Thumbnail(ctx, id, width)
		if err != nil {
			f.logger.Warn("thumbnail unavailable", zap.String("file_id", id), zap.String("mime_type", meta.MIMEType), zap.Error(err))
			continue
		}

		out[i] = &storage.Blob{
			Name:        meta.Name,
			ContentType: mimetype.Detect(data).String(),
			Data:        data,
		}
	}
	return out, nil
}
