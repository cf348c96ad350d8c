// Package converter executes conversion routes against a storage backend.
package converter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/formats"
	"github.com/mrlokans/mimeroute/internal/route"
	"github.com/mrlokans/mimeroute/internal/storage"
)

// defaultName is used for files created from unnamed blobs.
const defaultName = "untitled"

// Executor walks routes hop by hop, threading the current file through the
// backend's import and export primitives.
type Executor struct {
	backend          storage.Backend
	catalog          *formats.Catalog
	logger           *zap.Logger
	onCleanupFailure func(context.Context, CleanupWarning)
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for hop and cleanup diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCleanupHook registers a callback for transient files that could not be deleted.
func WithCleanupHook(fn func(context.Context, CleanupWarning)) Option {
	return func(e *Executor) {
		e.onCleanupFailure = fn
	}
}

// New creates an Executor. The catalog decides which types are backend-native.
func New(backend storage.Backend, catalog *formats.Catalog, opts ...Option) *Executor {
	if catalog == nil {
		catalog = formats.New(nil)
	}
	e := &Executor{
		backend: backend,
		catalog: catalog,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) newScope() *scope {
	return &scope{
		backend:   e.backend,
		logger:    e.logger,
		onFailure: e.onCleanupFailure,
	}
}

// Execute converts the stored file src along r, placing created files in folderID.
//
// The result is a FileRef when target is backend-native and a Blob otherwise.
// Every intermediate file is deleted before Execute returns, whether or not
// the conversion succeeded.
func (e *Executor) Execute(ctx context.Context, src storage.FileRef, r route.Route, target, folderID string) (storage.Object, error) {
	if !r.Found() {
		return nil, &UnsupportedConversionError{From: src.MIMEType, To: target}
	}
	if r.IsNoop() {
		return e.passThrough(ctx, src)
	}

	sc := e.newScope()
	defer sc.release(ctx)

	return e.walk(ctx, sc, src, r, target, folderID)
}

// ExecuteBlob converts in-memory content along r. The blob is first uploaded
// to folderID as a transient file owned by this call.
func (e *Executor) ExecuteBlob(ctx context.Context, blob storage.Blob, r route.Route, target, folderID string) (storage.Object, error) {
	if !r.Found() {
		return nil, &UnsupportedConversionError{From: blob.ContentType, To: target}
	}
	if r.IsNoop() {
		return blob.Copy(), nil
	}
	if blob.Name == "" {
		blob.Name = defaultName
	}

	sc := e.newScope()
	defer sc.release(ctx)

	id, err := e.backend.CreateFile(ctx, blob, folderID)
	if err != nil {
		return nil, fmt.Errorf("upload %q: %w", blob.Name, err)
	}
	sc.track(id)

	src := storage.FileRef{ID: id, Name: blob.Name, MIMEType: blob.ContentType}
	return e.walk(ctx, sc, src, r, target, folderID)
}

// passThrough returns the source of a no-op route: native files by
// reference, everything else as a copy of its content.
func (e *Executor) passThrough(ctx context.Context, src storage.FileRef) (storage.Object, error) {
	if e.catalog.IsNative(src.MIMEType) {
		return src, nil
	}
	data, err := e.backend.Download(ctx, src.ID)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", src.ID, err)
	}
	return storage.Blob{Name: src.Name, ContentType: src.MIMEType, Data: data}, nil
}

func (e *Executor) walk(ctx context.Context, sc *scope, src storage.FileRef, r route.Route, target, folderID string) (storage.Object, error) {
	name := src.Name
	if name == "" {
		name = defaultName
	}
	nativeTarget := e.catalog.IsNative(target)
	cur := src

	for i, hop := range r.Hops {
		last := i == len(r.Hops)-1

		switch hop.Convert {
		case route.Import:
			id, err := e.backend.CopyWithRetype(ctx, cur.ID, name, hop.To, folderID)
			if err != nil {
				return nil, fmt.Errorf("import %s as %s: %w", cur.MIMEType, hop.To, err)
			}
			cur = storage.FileRef{ID: id, Name: name, MIMEType: hop.To}
			if !last {
				sc.track(id)
			}

		case route.Export:
			link, err := e.backend.ExportLink(ctx, cur.ID, hop.To)
			if err != nil {
				return nil, fmt.Errorf("export %s as %s: %w", cur.MIMEType, hop.To, err)
			}
			data, err := e.backend.FetchContent(ctx, link)
			if err != nil {
				return nil, fmt.Errorf("export %s as %s: %w", cur.MIMEType, hop.To, err)
			}
			blob := storage.Blob{Name: name, ContentType: hop.To, Data: data}
			if last && !nativeTarget {
				return blob, nil
			}
			id, err := e.backend.CreateFile(ctx, blob, folderID)
			if err != nil {
				return nil, fmt.Errorf("store %s export: %w", hop.To, err)
			}
			cur = storage.FileRef{ID: id, Name: name, MIMEType: hop.To}
			if !last {
				sc.track(id)
			}

		default:
			return nil, fmt.Errorf("unknown conversion %q", hop.Convert)
		}

		e.logger.Debug("hop completed",
			zap.Int("hop", i+1),
			zap.String("convert", string(hop.Convert)),
			zap.String("to", hop.To),
			zap.String("file_id", cur.ID),
		)
	}

	return cur, nil
}
