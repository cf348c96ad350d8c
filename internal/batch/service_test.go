package batch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/mimeroute/internal/converter"
	"github.com/mrlokans/mimeroute/internal/storage"
	"github.com/mrlokans/mimeroute/internal/storage/storagetest"
)

const (
	csv         = "text/csv"
	pdf         = "application/pdf"
	png         = "image/png"
	spreadsheet = "application/vnd.google-apps.spreadsheet"
)

func exampleBackend() *storagetest.Backend {
	return storagetest.New(&storage.Capabilities{
		ImportFormats: map[string][]string{csv: {spreadsheet}},
		ExportFormats: map[string][]string{spreadsheet: {pdf, csv}},
	})
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func TestConvertAll_Validation(t *testing.T) {
	tests := []struct {
		name   string
		items  []storage.Object
		target string
	}{
		{name: "no items", items: nil, target: pdf},
		{name: "empty target", items: []storage.Object{storage.FileRef{ID: "x"}}, target: ""},
		{name: "file reference without id", items: []storage.Object{storage.FileRef{Name: "a"}}, target: pdf},
		{name: "blob without content type", items: []storage.Object{storage.Blob{Data: []byte("a")}}, target: pdf},
		{name: "nil item", items: []storage.Object{nil}, target: pdf},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := exampleBackend()
			svc := NewService(backend, nil)

			results, err := svc.ConvertAll(context.Background(), tt.items, tt.target, Options{})

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Nil(t, results)
			assert.Empty(t, backend.Calls(), "validation must happen before any backend call")
		})
	}
}

func TestCheck_ExampleCatalog(t *testing.T) {
	backend := exampleBackend()
	report := backend.AddFile("report", csv, []byte("a,b"))
	image := backend.AddFile("photo", png, nil)
	svc := NewService(backend, nil)

	results, err := svc.Check(context.Background(), []storage.Object{
		report,
		image,
		storage.Blob{Name: "inline.csv", ContentType: csv, Data: []byte("1")},
	}, pdf)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].IsPossible)
	assert.Equal(t, []string{csv, spreadsheet, pdf}, results[0].ConversionRoute)
	assert.Equal(t, report, results[0].Reference)
	assert.Nil(t, results[0].Output)

	assert.False(t, results[1].IsPossible)
	assert.Empty(t, results[1].ConversionRoute)

	assert.True(t, results[2].IsPossible)

	assert.Zero(t, backend.MutatingCalls())
	assert.Equal(t, 1, backend.Count(storagetest.OpCapabilities))
}

func TestCheck_NeverMutatesRegardlessOfItemCount(t *testing.T) {
	backend := exampleBackend()
	items := make([]storage.Object, 0, 20)
	for i := 0; i < 10; i++ {
		items = append(items, backend.AddFile("f", csv, nil))
		items = append(items, storage.Blob{ContentType: csv, Data: []byte("x")})
	}

	results, err := NewService(backend, nil).ConvertAll(context.Background(), items, pdf, Options{DryRun: true, Strict: true})
	require.NoError(t, err)

	assert.Len(t, results, len(items))
	assert.Zero(t, backend.MutatingCalls())
}

func TestConvertAll_SoftFailureForUnsupported(t *testing.T) {
	backend := exampleBackend()
	report := backend.AddFile("report", csv, []byte("a,b"))
	image := backend.AddFile("photo", png, nil)
	rec := &recorder{}
	svc := NewService(backend, nil, WithObserver(rec))

	results, err := svc.ConvertAll(context.Background(), []storage.Object{report, image}, pdf, Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.NotNil(t, results[0].Output)
	assert.Equal(t, pdf, results[0].Output.MIME())
	assert.IsType(t, storage.Blob{}, results[0].Output)

	assert.Nil(t, results[1].Output)
	assert.NoError(t, results[1].Err)
	assert.False(t, results[1].IsPossible)

	assert.Equal(t, []EventType{EventStarted, EventSucceeded, EventStarted, EventUnsupported}, rec.types())
	assert.Equal(t, 1, backend.Count(storagetest.OpCapabilities), "catalog is read once per batch")
}

func TestConvertAll_StrictAbortsOnUnsupported(t *testing.T) {
	backend := exampleBackend()
	image := backend.AddFile("photo", png, nil)
	report := backend.AddFile("report", csv, nil)

	results, err := NewService(backend, nil).ConvertAll(context.Background(), []storage.Object{image, report}, pdf, Options{Strict: true})

	require.Error(t, err)
	assert.True(t, converter.IsUnsupported(err))
	assert.Len(t, results, 1, "the batch stops at the first unsupported item")
	assert.Zero(t, backend.MutatingCalls())
}

func TestConvertAll_IsolatesBackendFailures(t *testing.T) {
	backend := exampleBackend()
	first := backend.AddFile("first", csv, []byte("1"))
	second := backend.AddFile("second", csv, []byte("2"))
	backend.FailOn(storagetest.OpCopy, 1, nil)
	rec := &recorder{}

	results, err := NewService(backend, nil, WithObserver(rec)).ConvertAll(context.Background(), []storage.Object{first, second}, pdf, Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Nil(t, results[0].Output)
	assert.True(t, storage.IsBackendError(results[0].Err))

	require.NotNil(t, results[1].Output)
	assert.Equal(t, []byte("2"), results[1].Output.(storage.Blob).Data)

	assert.Equal(t, []EventType{EventStarted, EventFailed, EventStarted, EventSucceeded}, rec.types())
}

func TestConvertAll_StrictStopsOnBackendFailure(t *testing.T) {
	backend := exampleBackend()
	first := backend.AddFile("first", csv, nil)
	second := backend.AddFile("second", csv, nil)
	backend.FailOn(storagetest.OpExportLink, 1, nil)

	results, err := NewService(backend, nil).ConvertAll(context.Background(), []storage.Object{first, second}, pdf, Options{Strict: true})

	require.Error(t, err)
	assert.True(t, storage.IsBackendError(err))
	require.Len(t, results, 1)
	assert.Equal(t, 1, backend.Count(storagetest.OpCopy))
	assert.ElementsMatch(t, backend.Created(), backend.Deleted(), "the failed item is cleaned up")
}

func TestConvertAll_MetadataFailureIsRecorded(t *testing.T) {
	backend := exampleBackend()
	ok := backend.AddFile("ok", csv, nil)

	results, err := NewService(backend, nil).ConvertAll(context.Background(), []storage.Object{
		storage.FileRef{ID: "missing"},
		ok,
	}, spreadsheet, Options{})
	require.NoError(t, err)

	assert.Error(t, results[0].Err)
	assert.Equal(t, storage.FileRef{ID: "missing"}, results[0].Reference)
	assert.NotNil(t, results[1].Output)
}

func TestConvertAll_SameTypePassThrough(t *testing.T) {
	backend := exampleBackend()
	report := backend.AddFile("report", csv, []byte("a"))
	blob := storage.Blob{Name: "b.csv", ContentType: csv, Data: []byte("abc")}
	rec := &recorder{}

	results, err := NewService(backend, nil, WithObserver(rec)).ConvertAll(context.Background(), []storage.Object{report, blob}, csv, Options{})
	require.NoError(t, err)

	require.IsType(t, storage.Blob{}, results[0].Output, "non-native files come back as content")
	assert.Equal(t, storage.Blob{Name: "report", ContentType: csv, Data: []byte("a")}, results[0].Output)

	out := results[1].Output.(storage.Blob)
	assert.Equal(t, blob, out)
	out.Data[0] = 'z'
	assert.Equal(t, []byte("abc"), blob.Data, "blob output does not alias the input")

	assert.Zero(t, backend.MutatingCalls())
	assert.Equal(t, 1, backend.Count(storagetest.OpDownload))
	assert.Zero(t, backend.Count(storagetest.OpCopy))
	assert.Equal(t, []EventType{EventStarted, EventSkipped, EventStarted, EventSkipped}, rec.types())
}

func TestConvertAll_SameTypeNonNativeTarget(t *testing.T) {
	backend := exampleBackend()
	doc := backend.AddFile("report.pdf", pdf, []byte("%PDF-1.7"))

	results, err := NewService(backend, nil).Convert(context.Background(), []storage.Object{doc}, pdf, Options{})
	require.NoError(t, err)

	out, ok := results[0].Output.(storage.Blob)
	require.True(t, ok, "a pdf target is not native, so the output is content")
	assert.Equal(t, pdf, out.ContentType)
	assert.Equal(t, []byte("%PDF-1.7"), out.Data)
	assert.Zero(t, backend.MutatingCalls())
}

func TestConvertAll_SameTypeNativeFile(t *testing.T) {
	backend := exampleBackend()
	sheet := backend.AddFile("Budget", spreadsheet, nil)

	results, err := NewService(backend, nil).Convert(context.Background(), []storage.Object{sheet}, spreadsheet, Options{})
	require.NoError(t, err)

	assert.Equal(t, sheet, results[0].Output, "native files stay references")
	assert.Zero(t, backend.Count(storagetest.OpDownload))
	assert.Zero(t, backend.MutatingCalls())
}

func TestConvertAll_SameTypeDownloadFailure(t *testing.T) {
	backend := exampleBackend()
	report := backend.AddFile("report", csv, []byte("a"))
	backend.FailOn(storagetest.OpDownload, 1, nil)

	results, err := NewService(backend, nil).Convert(context.Background(), []storage.Object{report}, csv, Options{})
	require.NoError(t, err)

	assert.Nil(t, results[0].Output)
	assert.Error(t, results[0].Err)
}

func TestConvertAll_ResolvesFileMetadata(t *testing.T) {
	backend := exampleBackend()
	stored := backend.AddFile("report", csv, nil)

	results, err := NewService(backend, nil).Check(context.Background(), []storage.Object{storage.FileRef{ID: stored.ID}}, pdf)
	require.NoError(t, err)

	assert.Equal(t, stored, results[0].Reference)
	assert.True(t, results[0].IsPossible)
}

func TestConvertAll_Folders(t *testing.T) {
	t.Run("service default", func(t *testing.T) {
		backend := exampleBackend()
		report := backend.AddFile("report", csv, nil)

		results, err := NewService(backend, nil, WithDefaultFolder("converted")).Convert(context.Background(), []storage.Object{report}, spreadsheet, Options{})
		require.NoError(t, err)

		f, ok := backend.Get(results[0].Output.(storage.FileRef).ID)
		require.True(t, ok)
		assert.Equal(t, "converted", f.ParentID)
	})

	t.Run("per call override", func(t *testing.T) {
		backend := exampleBackend()
		report := backend.AddFile("report", csv, nil)

		results, err := NewService(backend, nil).Convert(context.Background(), []storage.Object{report}, spreadsheet, Options{FolderID: "elsewhere", DryRun: true})
		require.NoError(t, err)

		f, ok := backend.Get(results[0].Output.(storage.FileRef).ID)
		require.True(t, ok)
		assert.Equal(t, "elsewhere", f.ParentID, "Convert always converts")
	})

	t.Run("backend root by default", func(t *testing.T) {
		backend := exampleBackend()

		results, err := NewService(backend, nil).Convert(context.Background(), []storage.Object{
			storage.Blob{Name: "x.csv", ContentType: csv, Data: []byte("1")},
		}, spreadsheet, Options{})
		require.NoError(t, err)

		f, ok := backend.Get(results[0].Output.(storage.FileRef).ID)
		require.True(t, ok)
		assert.Equal(t, storage.RootFolderID, f.ParentID)
	})
}

func TestConvertAll_CleanupWarningEvent(t *testing.T) {
	backend := exampleBackend()
	report := backend.AddFile("report", csv, nil)
	backend.FailOn(storagetest.OpDelete, 1, errors.New("forbidden"))
	rec := &recorder{}

	results, err := NewService(backend, nil, WithObserver(rec)).ConvertAll(context.Background(), []storage.Object{report}, pdf, Options{})
	require.NoError(t, err)
	assert.NotNil(t, results[0].Output)

	assert.Equal(t, []EventType{EventStarted, EventCleanupWarning, EventSucceeded}, rec.types())
	warning := rec.events[1]
	assert.Equal(t, backend.Created()[0], warning.FileID)
	assert.EqualError(t, warning.Err, "forbidden")
}

func TestConvertAll_EventMetadata(t *testing.T) {
	backend := exampleBackend()
	report := backend.AddFile("report", csv, nil)
	rec := &recorder{}

	_, err := NewService(backend, nil, WithObserver(rec)).ConvertAll(context.Background(), []storage.Object{report}, pdf, Options{})
	require.NoError(t, err)

	require.Len(t, rec.events, 2)
	done := rec.events[1]
	assert.NotEmpty(t, done.BatchID)
	assert.Equal(t, rec.events[0].BatchID, done.BatchID)
	assert.Equal(t, report.ID, done.SourceID)
	assert.Equal(t, csv, done.SourceType)
	assert.Equal(t, pdf, done.TargetType)
	assert.Equal(t, 2, done.Hops)
	assert.False(t, done.At.IsZero())
}

func TestConvertAll_CatalogFailure(t *testing.T) {
	backend := exampleBackend()
	report := backend.AddFile("report", csv, nil)
	backend.FailOn(storagetest.OpCapabilities, 1, nil)

	_, err := NewService(backend, nil).Check(context.Background(), []storage.Object{report}, pdf)

	require.Error(t, err)
	assert.True(t, storage.IsBackendError(err))
}

func TestListSupportedConversions(t *testing.T) {
	pairs, err := NewService(exampleBackend(), nil).ListSupportedConversions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{
		csv:         {pdf, csv},
		spreadsheet: {pdf, csv},
	}, pairs)
}
