package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	boom := errors.New("boom")

	if err := m.Track("audit:deliver").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Track("audit:deliver").End(boom); !errors.Is(err, boom) {
		t.Fatalf("End must return the original error, got %v", err)
	}
	if got := counterValue(t, reg, "quizroom_jobs_total", map[string]string{"job": "audit:deliver", "status": "success"}); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := counterValue(t, reg, "quizroom_jobs_failures_total", map[string]string{"job": "audit:deliver"}); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestAddPruned(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.AddPruned(4)
	m.AddPruned(0)
	if got := counterValue(t, reg, "quizroom_audit_entries_pruned_total", nil); got != 4 {
		t.Fatalf("expected 4, got %v", got)
	}
	var nilMetrics *Metrics
	nilMetrics.AddPruned(1)
	if err := nilMetrics.Track("x").End(nil); err != nil {
		t.Fatalf("nil tracker: %v", err)
	}
}
