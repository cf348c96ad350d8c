package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditsvc "github.com/mrlokans/mimeroute/internal/audit"
	"github.com/mrlokans/mimeroute/internal/batch"
	"github.com/mrlokans/mimeroute/internal/database"
	auditRepo "github.com/mrlokans/mimeroute/internal/database/audit"
	"github.com/mrlokans/mimeroute/internal/database/jobs"
	"github.com/mrlokans/mimeroute/internal/metrics"
	"github.com/mrlokans/mimeroute/internal/storage"
	"github.com/mrlokans/mimeroute/internal/storage/storagetest"
	"github.com/mrlokans/mimeroute/internal/tasks"
	"github.com/mrlokans/mimeroute/internal/thumbnails"
)

const (
	csvType         = "text/csv"
	pdfType         = "application/pdf"
	spreadsheetType = "application/vnd.google-apps.spreadsheet"
)

type fakeQueue struct {
	mu    sync.Mutex
	tasks []backlite.Task
	err   error
}

func (q *fakeQueue) Enqueue(ctx context.Context, task backlite.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.tasks = append(q.tasks, task)
	return "task-1", nil
}

type testEnv struct {
	router  http.Handler
	backend *storagetest.Backend
	service *batch.Service
	jobs    *jobs.Repository
	queue   *fakeQueue
	audit   *auditsvc.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "api.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	backend := storagetest.New(&storage.Capabilities{
		ImportFormats: map[string][]string{csvType: {spreadsheetType}},
		ExportFormats: map[string][]string{spreadsheetType: {pdfType, csvType}},
	})

	auditService := auditsvc.NewService(auditRepo.NewRepository(db.DB), nil)
	m := metrics.New()
	service := batch.NewService(backend, nil, batch.WithObserver(auditService), batch.WithObserver(m))
	jobRepo := jobs.NewRepository(db.DB)
	queue := &fakeQueue{}

	router := NewRouter(RouterConfig{
		Converter:    service,
		Database:     db,
		Jobs:         jobRepo,
		Queue:        queue,
		Thumbnails:   thumbnails.NewFetcher(backend, backend, nil),
		Audit:        auditService,
		Metrics:      m.Handler(),
		MaxBodyBytes: 1 << 20,
		Version:      "test",
	})

	return &testEnv{router: router, backend: backend, service: service, jobs: jobRepo, queue: queue, audit: auditService}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRouter_ListConversions(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/conversions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]map[string][]string](t, w)
	assert.ElementsMatch(t, []string{pdfType, csvType}, body["conversions"][csvType])
}

func TestRouter_Check(t *testing.T) {
	env := newTestEnv(t)
	src := env.backend.AddFile("report", csvType, []byte("a,b\n"))

	w := env.do(t, http.MethodPost, "/api/conversions/check", ConversionRequest{
		Items:  []batch.Item{{FileID: src.ID}, {Name: "img", ContentType: "image/png", Data: []byte{1}}},
		Target: pdfType,
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ConversionResponse](t, w)
	require.Len(t, resp.Results, 2)
	assert.True(t, resp.Results[0].IsPossible)
	assert.Equal(t, []string{csvType, spreadsheetType, pdfType}, resp.Results[0].ConversionRoute)
	assert.Equal(t, "report", resp.Results[0].Reference.Name)
	assert.Nil(t, resp.Results[0].Output)
	assert.False(t, resp.Results[1].IsPossible)
	assert.Empty(t, resp.Results[1].ConversionRoute)

	assert.Zero(t, env.backend.MutatingCalls())
}

func TestRouter_ConvertBlob(t *testing.T) {
	env := newTestEnv(t)

	body := `{"target":"` + pdfType + `","items":[{"name":"data","content_type":"text/csv","data":"` +
		base64.StdEncoding.EncodeToString([]byte("a,b\n")) + `"}]}`
	w := env.do(t, http.MethodPost, "/api/conversions", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[ConversionResponse](t, w)
	require.Len(t, resp.Results, 1)
	require.NotNil(t, resp.Results[0].Output)
	assert.Equal(t, pdfType, resp.Results[0].Output.ContentType)
	assert.Equal(t, []byte("a,b\n"), resp.Results[0].Output.Data)

	for _, id := range env.backend.Created() {
		assert.False(t, env.backend.Exists(id), "transient %s left behind", id)
	}
}

func TestRouter_ConvertSniffsUntypedUploads(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/conversions/check", ConversionRequest{
		Items:  []batch.Item{{Name: "doc", Data: []byte("%PDF-1.7\n")}},
		Target: pdfType,
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ConversionResponse](t, w)
	assert.Equal(t, pdfType, resp.Results[0].Reference.ContentType)
	assert.True(t, resp.Results[0].IsPossible)
}

func TestRouter_ConvertErrors(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, http.MethodPost, "/api/conversions", "{")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid argument", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, http.MethodPost, "/api/conversions", ConversionRequest{Target: pdfType})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_argument", decode[ErrorResponse](t, w).Code)
		assert.Zero(t, env.backend.Count(storagetest.OpCapabilities))
	})

	t.Run("strict abort returns partial results", func(t *testing.T) {
		env := newTestEnv(t)
		src := env.backend.AddFile("report", csvType, []byte("a"))

		w := env.do(t, http.MethodPost, "/api/conversions", ConversionRequest{
			Items: []batch.Item{
				{FileID: src.ID},
				{Name: "img", ContentType: "image/png", Data: []byte{1}},
				{FileID: src.ID},
			},
			Target: pdfType,
			Strict: true,
		})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		resp := decode[ConversionResponse](t, w)
		assert.Len(t, resp.Results, 2)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("backend failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.backend.FailOn(storagetest.OpCapabilities, 1, &storage.BackendError{Op: "about", StatusCode: 403, Body: "denied"})

		w := env.do(t, http.MethodGet, "/api/conversions", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "denied", decode[ErrorResponse](t, w).Details)
	})

	t.Run("body too large", func(t *testing.T) {
		env := newTestEnv(t)
		big := make([]byte, 2<<20)
		w := env.do(t, http.MethodPost, "/api/conversions", ConversionRequest{
			Items:  []batch.Item{{Name: "big", ContentType: csvType, Data: big}},
			Target: pdfType,
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestRouter_Jobs(t *testing.T) {
	env := newTestEnv(t)
	src := env.backend.AddFile("report", csvType, []byte("a,b\n"))

	w := env.do(t, http.MethodPost, "/api/jobs", ConversionRequest{
		Items:  []batch.Item{{FileID: src.ID}, {Name: "img", ContentType: "image/png", Data: []byte{1}}},
		Target: pdfType,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	created := decode[map[string]any](t, w)
	jobID, _ := created["id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "pending", created["status"])

	require.Len(t, env.queue.tasks, 1)
	assert.Equal(t, tasks.ConvertJobTask{JobID: jobID}, env.queue.tasks[0])

	process := tasks.ConvertJobProcessor(tasks.ConvertJobDeps{Jobs: env.jobs, Converter: env.service})
	require.NoError(t, process(context.Background(), tasks.ConvertJobTask{JobID: jobID}))

	w = env.do(t, http.MethodGet, "/api/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	job := decode[map[string]any](t, w)
	assert.Equal(t, "completed", job["status"])
	assert.Len(t, job["outputs"], 2)

	w = env.do(t, http.MethodGet, "/api/jobs/"+jobID+"/outputs/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pdfType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "a,b\n", w.Body.String())

	w = env.do(t, http.MethodGet, "/api/jobs/"+jobID+"/outputs/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "conversion unsupported", decode[ErrorResponse](t, w).Details)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/jobs/"+jobID+"/outputs/9", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/jobs/"+jobID+"/outputs/x", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/jobs/missing", nil).Code)
}

func TestRouter_JobsRejectInvalidRequests(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/jobs", ConversionRequest{Items: []batch.Item{{FileID: "x"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.queue.tasks)
}

func TestRouter_JobsEnqueueFailure(t *testing.T) {
	env := newTestEnv(t)
	env.queue.err = errors.New("queue closed")

	w := env.do(t, http.MethodPost, "/api/jobs", ConversionRequest{Items: []batch.Item{{FileID: "x"}}, Target: pdfType})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRouter_Thumbnails(t *testing.T) {
	env := newTestEnv(t)
	src := env.backend.AddFile("report", csvType, []byte("a"))

	w := env.do(t, http.MethodGet, "/api/thumbnails?ids="+src.ID+",missing&width=200", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string][]*ThumbnailResponse](t, w)
	require.Len(t, body["thumbnails"], 2)
	require.NotNil(t, body["thumbnails"][0])
	assert.Equal(t, "report", body["thumbnails"][0].Name)
	assert.Equal(t, "thumbnail:"+src.ID+":w200", string(body["thumbnails"][0].Data))
	assert.Nil(t, body["thumbnails"][1])

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/thumbnails", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/thumbnails?ids=a&width=0", nil).Code)
}

func TestRouter_AuditAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	src := env.backend.AddFile("report", csvType, []byte("a"))

	w := env.do(t, http.MethodPost, "/api/conversions", ConversionRequest{Items: []batch.Item{{FileID: src.ID}}, Target: pdfType})
	require.Equal(t, http.StatusOK, w.Code)
	env.audit.Flush()

	w = env.do(t, http.MethodGet, "/api/audit?status=success", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[map[string]any](t, w)
	assert.Equal(t, float64(1), page["total"])
	assert.Equal(t, false, page["has_more"])

	w = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `mimeroute_batch_items_total{outcome="succeeded"} 1`)
}

func TestRouter_OptionalRoutes(t *testing.T) {
	router := NewRouter(RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/conversions", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
