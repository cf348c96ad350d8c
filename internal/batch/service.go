// Package batch applies route finding and execution to lists of files and blobs.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/converter"
	"github.com/mrlokans/mimeroute/internal/formats"
	"github.com/mrlokans/mimeroute/internal/route"
	"github.com/mrlokans/mimeroute/internal/storage"
)

// Options control a single batch run.
type Options struct {
	// FolderID receives created files. Empty means the service default.
	FolderID string
	// DryRun only reports feasibility and never mutates the backend.
	DryRun bool
	// Strict aborts the batch on the first unsupported or failed item.
	Strict bool
}

// Result describes the outcome for one input item, in input order.
type Result struct {
	// Reference is the input item, with name and type resolved for file references.
	Reference storage.Object
	// Output is nil when the item could not be converted.
	Output storage.Object
	// IsPossible and ConversionRoute are filled in every mode.
	IsPossible      bool
	ConversionRoute []string
	Err             error
}

// Service orchestrates batch conversions.
type Service struct {
	backend       storage.Backend
	catalogs      formats.Source
	logger        *zap.Logger
	observers     []Observer
	defaultFolder string
	now           func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver adds an event observer. Observers are called in registration order.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithDefaultFolder sets the folder used when Options.FolderID is empty.
func WithDefaultFolder(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.defaultFolder = id
		}
	}
}

// NewService creates a Service. A nil catalogs source fetches from backend on every batch.
func NewService(backend storage.Backend, catalogs formats.Source, opts ...Option) *Service {
	if catalogs == nil {
		catalogs = formats.NewFetcher(backend)
	}
	s := &Service{
		backend:       backend,
		catalogs:      catalogs,
		logger:        zap.NewNop(),
		defaultFolder: storage.RootFolderID,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListSupportedConversions returns every direct source -> target pair the backend offers.
func (s *Service) ListSupportedConversions(ctx context.Context) (map[string][]string, error) {
	catalog, err := s.catalogs.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.ConvertiblePairs(), nil
}

// Check reports whether each item can reach target without touching the backend's files.
func (s *Service) Check(ctx context.Context, items []storage.Object, target string) ([]Result, error) {
	return s.ConvertAll(ctx, items, target, Options{DryRun: true})
}

// Convert converts every item to target.
func (s *Service) Convert(ctx context.Context, items []storage.Object, target string, opts Options) ([]Result, error) {
	opts.DryRun = false
	return s.ConvertAll(ctx, items, target, opts)
}

// ConvertAll runs a batch. Results are returned in input order.
//
// Items that already have the target type are passed through: native files
// by reference, other files and blobs as copied content.
//
// Unsupported items produce a nil Output and backend failures are recorded in
// Result.Err while the remaining items still run. With opts.Strict the first
// such item stops the batch: the results gathered so far are returned along
// with the error.
func (s *Service) ConvertAll(ctx context.Context, items []storage.Object, target string, opts Options) ([]Result, error) {
	if err := validateRequest(items, target); err != nil {
		return nil, err
	}
	folder := opts.FolderID
	if folder == "" {
		folder = s.defaultFolder
	}

	catalog, err := s.catalogs.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	log := s.logger.With(
		zap.String("batch_id", batchID),
		zap.String("target", target),
		zap.Int("items", len(items)),
		zap.Bool("dry_run", opts.DryRun),
	)
	if !opts.DryRun {
		if catalog.IsNative(target) {
			log.Info("results will be stored as backend files", zap.String("folder_id", folder))
		} else {
			log.Info("results will be returned as content")
		}
	}

	r := &run{
		Service: s,
		batchID: batchID,
		target:  target,
		folder:  folder,
		opts:    opts,
		catalog: catalog,
		log:     log,
	}
	r.exec = converter.New(s.backend, catalog,
		converter.WithLogger(log),
		converter.WithCleanupHook(r.cleanupWarning),
	)

	results := make([]Result, 0, len(items))
	for i, item := range items {
		r.index = i
		res, err := r.item(ctx, item)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// run holds the state of one ConvertAll call.
type run struct {
	*Service
	batchID string
	target  string
	folder  string
	opts    Options
	catalog *formats.Catalog
	exec    *converter.Executor
	log     *zap.Logger
	index   int
	current storage.Object
}

func (r *run) item(ctx context.Context, item storage.Object) (Result, error) {
	r.current = item
	ref, err := r.resolve(ctx, item)
	if err != nil {
		res := Result{Reference: item, Err: err}
		if r.opts.DryRun {
			return res, nil
		}
		r.emit(ctx, Event{Type: EventFailed, Err: err})
		r.log.Error("conversion failed", zap.Int("index", r.index), zap.Error(err))
		if r.opts.Strict {
			return res, err
		}
		return res, nil
	}
	r.current = ref

	rt := route.Find(ref.MIME(), r.target, r.catalog)
	res := Result{
		Reference:       ref,
		IsPossible:      rt.Found(),
		ConversionRoute: rt.Types(),
	}
	if r.opts.DryRun {
		return res, nil
	}

	start := r.now()
	r.emit(ctx, Event{Type: EventStarted, Hops: rt.Len()})

	switch {
	case !rt.Found():
		err := &converter.UnsupportedConversionError{From: ref.MIME(), To: r.target}
		r.emit(ctx, Event{Type: EventUnsupported, Err: err})
		r.log.Warn("conversion unsupported", zap.Int("index", r.index), zap.String("from", ref.MIME()))
		if r.opts.Strict {
			res.Err = err
			return res, err
		}
		return res, nil

	}

	var out storage.Object
	switch src := ref.(type) {
	case storage.FileRef:
		out, err = r.exec.Execute(ctx, src, rt, r.target, r.folder)
	case storage.Blob:
		out, err = r.exec.ExecuteBlob(ctx, src, rt, r.target, r.folder)
	}
	if err != nil {
		res.Err = err
		r.emit(ctx, Event{Type: EventFailed, Hops: rt.Len(), Duration: r.now().Sub(start), Err: err})
		r.log.Error("conversion failed", zap.Int("index", r.index), zap.Error(err))
		if r.opts.Strict {
			return res, fmt.Errorf("item %d: %w", r.index, err)
		}
		return res, nil
	}

	res.Output = out
	if rt.IsNoop() {
		r.log.Info("item already has the target type, passing it through", zap.Int("index", r.index))
		r.emit(ctx, Event{Type: EventSkipped, Duration: r.now().Sub(start)})
		return res, nil
	}
	r.emit(ctx, Event{Type: EventSucceeded, Hops: rt.Len(), Duration: r.now().Sub(start)})
	return res, nil
}

// resolve fills in the name and type of file references from the backend.
func (r *run) resolve(ctx context.Context, item storage.Object) (storage.Object, error) {
	ref, ok := item.(storage.FileRef)
	if !ok {
		return item, nil
	}
	meta, err := r.backend.Metadata(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref.ID, err)
	}
	resolved := *meta
	resolved.ID = ref.ID
	return resolved, nil
}

func (r *run) cleanupWarning(ctx context.Context, w converter.CleanupWarning) {
	r.emit(ctx, Event{Type: EventCleanupWarning, FileID: w.FileID, Err: w.Err})
}

func (r *run) emit(ctx context.Context, e Event) {
	e.BatchID = r.batchID
	e.Index = r.index
	e.TargetType = r.target
	e.At = r.now()
	if r.current != nil {
		e.SourceType = r.current.MIME()
		if ref, ok := r.current.(storage.FileRef); ok {
			e.SourceID = ref.ID
		}
	}
	for _, o := range r.observers {
		o.OnEvent(ctx, e)
	}
}
