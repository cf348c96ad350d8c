package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/mimeroute/internal/batch"
)

func TestMetrics_OnEvent(t *testing.T) {
	m := New()
	ctx := context.Background()

	m.OnEvent(ctx, batch.Event{Type: batch.EventStarted, Hops: 2})
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ItemsInFlight))

	m.OnEvent(ctx, batch.Event{Type: batch.EventSucceeded, Hops: 2, Duration: 120 * time.Millisecond})
	m.OnEvent(ctx, batch.Event{Type: batch.EventStarted})
	m.OnEvent(ctx, batch.Event{Type: batch.EventUnsupported})
	m.OnEvent(ctx, batch.Event{Type: batch.EventStarted})
	m.OnEvent(ctx, batch.Event{Type: batch.EventFailed, Err: errors.New("boom")})
	m.OnEvent(ctx, batch.Event{Type: batch.EventCleanupWarning, FileID: "tmp"})

	assert.Equal(t, float64(0), testutil.ToFloat64(m.ItemsInFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ItemsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ItemsTotal.WithLabelValues("unsupported")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ItemsTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CleanupWarnings))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RouteHops))
}

func TestMetrics_JobsAndRetention(t *testing.T) {
	m := New()

	m.JobFinished(nil)
	m.JobFinished(nil)
	m.JobFinished(errors.New("failed"))
	m.RetentionRan(5, 2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.JobsProcessed.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.JobsProcessed.WithLabelValues("failed")))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.RetentionDeletions.WithLabelValues("audit_events")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RetentionDeletions.WithLabelValues("jobs")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.OnEvent(context.Background(), batch.Event{Type: batch.EventSkipped})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mimeroute_batch_items_total{outcome="skipped"} 1`)
}

func TestNew_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
