package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-approval/internal/application/service"
	"github.com/garyjia/travel-approval/internal/application/workflow"
)

var (
	_ workflow.Recorder      = (*Metrics)(nil)
	_ service.ReportRecorder = (*Metrics)(nil)
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveSubmission("pending")
	m.ObserveSubmission("pending")
	m.ObserveDecision("approve", "approved", 1, 5*time.Millisecond)
	m.ObserveDecision("reject", "version_conflict", 3, 20*time.Millisecond)
	m.ObserveReport("overview", false, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("approve", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("reject", "version_conflict")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ReportLatency))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSubmission("pending")
		m.ObserveDecision("approve", "approved", 1, time.Millisecond)
		m.ObserveReport("trend", true, time.Millisecond)
	})
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveSubmission("pending")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `approval_submissions_total{outcome="pending"} 1`))
}
