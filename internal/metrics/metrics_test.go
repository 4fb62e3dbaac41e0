package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Login("success")
	m.Login("failure")
	m.Login("failure")
	m.Lockout()
	m.Refresh("success")
	m.Revoked(3)
	m.Revoked(0)
	m.Swept(2)
	m.ScopedRead("products", "restricted")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.revocations))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sweptTokens))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scopedReads.WithLabelValues("products", "restricted")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Login("success")
		m.Lockout()
		m.Refresh("failure")
		m.Revoked(1)
		m.Swept(1)
		m.ScopedRead("products", "empty")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Lockout()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stockflow_auth_lockouts_total 1")
}
