package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordTableOperation("put", true, time.Millisecond)
		m.RecordRegistryOperation("create", false)
		m.RecordCacheLookup(true)
		m.RecordTableCreated()
		m.RecordWALBatch(7, map[string]int{"put": 1})
		m.RecordWALDecodeError()
		m.RecordAuthRequest(true)
		m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
	})

	called := false
	h := m.InstrumentHandler("GET", "/x", func(w http.ResponseWriter, r *http.Request) { called = true })
	h(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))
	assert.True(t, called)
}

func TestRegistryMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordRegistryOperation("create", true)
	m.RecordRegistryOperation("create", true)
	m.RecordRegistryOperation("rename", false)
	m.RecordCacheLookup(false)
	m.RecordTableCreated()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.registryOperationsTotal.WithLabelValues("create", statusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.registryOperationsTotal.WithLabelValues("rename", statusError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.registryCacheTotal.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.tablesCreatedTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestWALMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordWALBatch(10, map[string]int{"put": 2, "delete": 1})
	m.RecordWALBatch(12, map[string]int{"delete_range": 1})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.walBatchesTotal))
	assert.Equal(t, float64(12), testutil.ToFloat64(m.walLastSequence))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.walUpdatesTotal.WithLabelValues("put")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.walUpdatesTotal.WithLabelValues("delete_range")))
}

func TestInstrumentHandler_CapturesStatus(t *testing.T) {
	m := New(prometheus.NewRegistry())

	h := m.InstrumentHandler("GET", "/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/missing", "404")))
}
