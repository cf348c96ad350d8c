package storage

import (
	"context"
)

// RootFolderID is the alias the backend uses for the user's top-level folder.
const RootFolderID = "root"

// Capabilities is the raw import/export format description advertised by the backend.
type Capabilities struct {
	// ImportFormats maps an external type to the native types it can be imported as.
	ImportFormats map[string][]string `json:"importFormats"`
	// ExportFormats maps a native type to the external types it can be exported as.
	ExportFormats map[string][]string `json:"exportFormats"`
}

// Backend defines the storage operations the conversion engine needs.
type Backend interface {
	// Capabilities reads the backend's import/export format maps
	Capabilities(ctx context.Context) (*Capabilities, error)

	// Metadata returns the name and MIME type of a file
	Metadata(ctx context.Context, fileID string) (*FileRef, error)

	// CopyWithRetype duplicates a file, asking the backend to convert it to targetType
	CopyWithRetype(ctx context.Context, fileID, name, targetType, parentID string) (string, error)

	// ExportLink returns the URL rendering fileID as targetType
	ExportLink(ctx context.Context, fileID, targetType string) (string, error)

	// FetchContent downloads the content behind an export link
	FetchContent(ctx context.Context, url string) ([]byte, error)

	// CreateFile uploads blob as a new file inside parentID
	CreateFile(ctx context.Context, blob Blob, parentID string) (string, error)

	// Delete removes a file. Deleting a file that is already gone is not an error.
	Delete(ctx context.Context, fileID string) error

	// Download retrieves the raw content of a non-native file
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// ThumbnailSource fetches rendered thumbnails of stored files.
type ThumbnailSource interface {
	Thumbnail(ctx context.Context, fileID string, width int) ([]byte, error)
}
