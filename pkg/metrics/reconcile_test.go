package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestReconcileMetricsCountsActionsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewReconcileMetrics(reg)

	metrics.IncAction("grant")
	metrics.IncAction("grant")
	metrics.IncAction("downgrade")
	metrics.AddApplied(3)
	metrics.AddFailed(1)
	metrics.AddOrphans(2)
	metrics.AddUsersSeen(10)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "reconcile_actions_total", "kind", "grant"); err != nil {
		t.Fatalf("fetch grant actions: %v", err)
	} else if got != 2 {
		t.Fatalf("expected grant=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "reconcile_actions_total", "kind", "downgrade"); err != nil {
		t.Fatalf("fetch downgrade actions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected downgrade=1, got %f", got)
	}

	for name, want := range map[string]float64{
		"reconcile_applied_total":    3,
		"reconcile_failed_total":     1,
		"reconcile_orphans_total":    2,
		"reconcile_users_seen_total": 10,
	} {
		mf := findMetricFamily(mfs, name)
		if mf == nil {
			t.Fatalf("metric %q not found", name)
		}
		if got := mf.GetMetric()[0].GetCounter().GetValue(); got != want {
			t.Fatalf("%s = %f, want %f", name, got, want)
		}
	}
}

func TestReconcileMetricsNilRegistererIsInert(t *testing.T) {
	metrics := NewReconcileMetrics(nil)
	metrics.IncAction("noop")
	metrics.AddApplied(1)
	metrics.AddFailed(1)
	metrics.AddOrphans(1)
	metrics.AddUsersSeen(1)
}
