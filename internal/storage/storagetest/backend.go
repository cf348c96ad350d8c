// Package storagetest provides an in-memory storage.Backend for tests.
//
// The backend echoes requested types: copying a file with a target type yields
// a file of that type, exporting yields the source content unchanged. Every
// call is recorded so tests can assert on side effects.
package storagetest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/mrlokans/mimeroute/internal/storage"
)

// Operation names recorded in Calls.
const (
	OpCapabilities = "capabilities"
	OpMetadata     = "metadata"
	OpCopy         = "copy"
	OpExportLink   = "export_link"
	OpFetch        = "fetch"
	OpCreate       = "create"
	OpDelete       = "delete"
	OpDownload     = "download"
	OpThumbnail    = "thumbnail"
)

const exportScheme = "mem://export/"

// File is a file held by the in-memory backend.
type File struct {
	ID       string
	Name     string
	MIMEType string
	ParentID string
	Data     []byte
}

// Call records a single backend invocation.
type Call struct {
	Op   string
	Args []string
}

type failure struct {
	nth int
	err error
}

// Backend is an in-memory storage.Backend.
type Backend struct {
	mu       sync.Mutex
	caps     *storage.Capabilities
	files    map[string]*File
	nextID   int
	calls    []Call
	counts   map[string]int
	failures map[string]failure
	created  []string
	deleted  []string
}

// New creates an empty backend advertising caps. A nil caps behaves like an
// empty capability response.
func New(caps *storage.Capabilities) *Backend {
	return &Backend{
		caps:     caps,
		files:    make(map[string]*File),
		counts:   make(map[string]int),
		failures: make(map[string]failure),
	}
}

// AddFile seeds a file without recording a call.
func (b *Backend) AddFile(name, mimeType string, data []byte) storage.FileRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := b.newFileLocked(name, mimeType, storage.RootFolderID, data)
	return storage.FileRef{ID: f.ID, Name: f.Name, MIMEType: f.MIMEType}
}

// FailOn makes the nth (1-based) call of op fail with err. A nil err fails
// with a 500 BackendError.
func (b *Backend) FailOn(op string, nth int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		err = &storage.BackendError{Op: op, StatusCode: http.StatusInternalServerError, Body: "injected failure"}
	}
	b.failures[op] = failure{nth: nth, err: err}
}

// Calls returns every recorded call in order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// Count returns how many times op was called.
func (b *Backend) Count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[op]
}

// MutatingCalls returns the number of calls that changed backend state.
func (b *Backend) MutatingCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[OpCopy] + b.counts[OpCreate] + b.counts[OpDelete]
}

// Created returns the IDs of files created through the Backend interface.
func (b *Backend) Created() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.created...)
}

// Deleted returns the IDs passed to Delete.
func (b *Backend) Deleted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

// Get returns a stored file.
func (b *Backend) Get(id string) (File, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.files[id]
	if !ok {
		return File{}, false
	}
	return *f, true
}

// Exists reports whether a file is still stored.
func (b *Backend) Exists(id string) bool {
	_, ok := b.Get(id)
	return ok
}

func (b *Backend) record(op string, args ...string) error {
	b.calls = append(b.calls, Call{Op: op, Args: args})
	b.counts[op]++
	if f, ok := b.failures[op]; ok && f.nth == b.counts[op] {
		return f.err
	}
	return nil
}

func (b *Backend) newFileLocked(name, mimeType, parentID string, data []byte) *File {
	b.nextID++
	f := &File{
		ID:       fmt.Sprintf("file-%d", b.nextID),
		Name:     name,
		MIMEType: mimeType,
		ParentID: parentID,
		Data:     append([]byte(nil), data...),
	}
	b.files[f.ID] = f
	return f
}

func notFound(op, id string) error {
	return &storage.BackendError{Op: op, StatusCode: http.StatusNotFound, Body: "file not found: " + id}
}

func (b *Backend) Capabilities(ctx context.Context) (*storage.Capabilities, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpCapabilities); err != nil {
		return nil, err
	}
	if b.caps == nil {
		return &storage.Capabilities{}, nil
	}
	return b.caps, nil
}

func (b *Backend) Metadata(ctx context.Context, fileID string) (*storage.FileRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpMetadata, fileID); err != nil {
		return nil, err
	}
	f, ok := b.files[fileID]
	if !ok {
		return nil, notFound(OpMetadata, fileID)
	}
	return &storage.FileRef{ID: f.ID, Name: f.Name, MIMEType: f.MIMEType}, nil
}

func (b *Backend) CopyWithRetype(ctx context.Context, fileID, name, targetType, parentID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpCopy, fileID, name, targetType, parentID); err != nil {
		return "", err
	}
	src, ok := b.files[fileID]
	if !ok {
		return "", notFound(OpCopy, fileID)
	}
	f := b.newFileLocked(name, targetType, parentID, src.Data)
	b.created = append(b.created, f.ID)
	return f.ID, nil
}

func (b *Backend) ExportLink(ctx context.Context, fileID, targetType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpExportLink, fileID, targetType); err != nil {
		return "", err
	}
	if _, ok := b.files[fileID]; !ok {
		return "", notFound(OpExportLink, fileID)
	}
	return exportScheme + fileID + "?type=" + url.QueryEscape(targetType), nil
}

func (b *Backend) FetchContent(ctx context.Context, link string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpFetch, link); err != nil {
		return nil, err
	}
	rest, ok := strings.CutPrefix(link, exportScheme)
	if !ok {
		return nil, &storage.BackendError{Op: OpFetch, StatusCode: http.StatusBadRequest, Body: "unknown link " + link}
	}
	id, _, _ := strings.Cut(rest, "?")
	f, ok := b.files[id]
	if !ok {
		return nil, notFound(OpFetch, id)
	}
	return append([]byte(nil), f.Data...), nil
}

func (b *Backend) CreateFile(ctx context.Context, blob storage.Blob, parentID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpCreate, blob.Name, blob.ContentType, parentID); err != nil {
		return "", err
	}
	f := b.newFileLocked(blob.Name, blob.ContentType, parentID, blob.Data)
	b.created = append(b.created, f.ID)
	return f.ID, nil
}

func (b *Backend) Delete(ctx context.Context, fileID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, fileID)
	if err := b.record(OpDelete, fileID); err != nil {
		return err
	}
	delete(b.files, fileID)
	return nil
}

func (b *Backend) Download(ctx context.Context, fileID string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpDownload, fileID); err != nil {
		return nil, err
	}
	f, ok := b.files[fileID]
	if !ok {
		return nil, notFound(OpDownload, fileID)
	}
	return append([]byte(nil), f.Data...), nil
}

// Thumbnail returns a fake image for existing files.
func (b *Backend) Thumbnail(ctx context.Context, fileID string, width int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpThumbnail, fileID, fmt.Sprint(width)); err != nil {
		return nil, err
	}
	if _, ok := b.files[fileID]; !ok {
		return nil, notFound(OpThumbnail, fileID)
	}
	return []byte(fmt.Sprintf("thumbnail:%s:w%d", fileID, width)), nil
}

var (
	_ storage.Backend         = (*Backend)(nil)
	_ storage.ThumbnailSource = (*Backend)(nil)
)
