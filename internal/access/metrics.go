package access

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds prometheus collectors for decisions and remote checks.
// A nil *Metrics records nothing.
type Metrics struct {
	decisions      *prometheus.CounterVec
	verifications  *prometheus.CounterVec
	verifyDuration *prometheus.HistogramVec
}

// NewMetrics registers access collectors on registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizroom_access_decisions_total",
		Help: "Access decisions partitioned by role, resource type and result.",
	}, []string{"role", "resource", "result"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizroom_access_verifications_total",
		Help: "Remote verification lookups partitioned by kind and outcome (hit, miss, error).",
	}, []string{"kind", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quizroom_access_verification_duration_seconds",
		Help:    "Latency of remote access checks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	registerer.MustRegister(decisions, verifications, duration)
	return &Metrics{decisions: decisions, verifications: verifications, verifyDuration: duration}
}

func (m *Metrics) observeDecision(role Role, resource string, result AuditResult) {
	if m == nil {
		return
	}
	switch {
	case role == "":
		role = "none"
	case !role.Valid():
		role = "invalid"
	}
	if resource == "" {
		resource = "none"
	}
	m.decisions.WithLabelValues(string(role), resource, string(result)).Inc()
}

func (m *Metrics) observeVerify(kind Kind, outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) observeVerifyDuration(kind Kind, d time.Duration) {
	if m == nil {
		return
	}
	m.verifyDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}
