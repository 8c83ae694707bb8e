package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.InstanceCreated("web")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.InstancesActive))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.InstancesActive))
}

func TestInstanceCounters(t *testing.T) {
	m := NewMetrics()
	m.InstanceCreated("android")
	m.InstanceCreated("android")
	m.InstanceDestroyed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.InstancesActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.InstancesCreated.WithLabelValues("android")))
	assert.Equal(t, int64(1), m.Snapshot().ActiveInstances)
}

func TestTimer(t *testing.T) {
	m := NewMetrics()
	NewTimer(m, "load_url").StopErr(nil)
	NewTimer(m, "load_url").StopErr(errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationCalls.WithLabelValues("load_url", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationCalls.WithLabelValues("load_url", "error")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.InstanceCreated("web")
		m.RecordOperation("x", "success", time.Millisecond)
		m.RecordPreloadCheck(true)
		m.RecordEventDropped()
		NewTimer(m, "x").Stop("success")
	})
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.RecordPreloadCheck(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `offscreen_preload_checks_total{result="warm"} 1`)
	assert.Contains(t, rec.Body.String(), "offscreen_uptime_seconds")
}
