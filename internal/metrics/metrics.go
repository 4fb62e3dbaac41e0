// Package metrics exposes Prometheus counters for authentication and scoped reads.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	gatherer prometheus.Gatherer

	logins      *prometheus.CounterVec
	lockouts    prometheus.Counter
	refreshes   *prometheus.CounterVec
	revocations prometheus.Counter
	sweptTokens prometheus.Counter
	scopedReads *prometheus.CounterVec
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockflow_auth_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockflow_auth_lockouts_total",
			Help: "Accounts locked after repeated failed logins.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockflow_auth_refreshes_total",
			Help: "Refresh token rotations by result.",
		}, []string{"result"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockflow_auth_revoked_tokens_total",
			Help: "Refresh tokens revoked by logout or credential change.",
		}),
		sweptTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockflow_auth_swept_tokens_total",
			Help: "Expired refresh tokens deleted by the sweeper.",
		}),
		scopedReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockflow_scoped_reads_total",
			Help: "Scoped listing reads by entity and branch scope.",
		}, []string{"entity", "scope"}),
	}
	reg.MustRegister(m.logins, m.lockouts, m.refreshes, m.revocations, m.sweptTokens, m.scopedReads)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) Revoked(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.revocations.Add(float64(n))
}

func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptTokens.Add(float64(n))
}

// ScopedRead records a listing; scope is "unrestricted", "restricted" or "empty".
func (m *Metrics) ScopedRead(entity, scope string) {
	if m == nil {
		return
	}
	m.scopedReads.WithLabelValues(entity, scope).Inc()
}
