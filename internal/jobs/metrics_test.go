package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	assert.NoError(t, m.Track("audit_denied").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("audit_denied").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("audit_denied", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("audit_denied", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("audit_denied")))
}

func TestAddAudited(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddAudited("documents.Document")
	m.AddAudited("documents.Document")
	m.AddAudited("")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.audited.WithLabelValues("documents.Document")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddAudited("x")
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("job").End(boom), boom)
}
