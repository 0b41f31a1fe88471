package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics counts reconciliation outcomes per run.
type ReconcileMetrics struct {
	actions   *prometheus.CounterVec
	applied   prometheus.Counter
	failed    prometheus.Counter
	orphans   prometheus.Counter
	usersSeen prometheus.Counter
}

// NewReconcileMetrics registers the reconciliation metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_actions_total",
		Help: "Reconciliation actions decided, by kind.",
	}, []string{"kind"})
	applied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_applied_total",
		Help: "Reconciliation actions applied to the entitlement store.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_failed_total",
		Help: "Reconciliation actions that failed to apply.",
	})
	orphans := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_orphans_total",
		Help: "Paid entitlements flagged without supporting events.",
	})
	usersSeen := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_users_seen_total",
		Help: "Users examined by reconciliation runs.",
	})
	reg.MustRegister(actions, applied, failed, orphans, usersSeen)
	return &ReconcileMetrics{
		actions:   actions,
		applied:   applied,
		failed:    failed,
		orphans:   orphans,
		usersSeen: usersSeen,
	}
}

// IncAction increments the action counter for the given kind.
func (m *ReconcileMetrics) IncAction(kind string) {
	if m == nil || m.actions == nil {
		return
	}
	m.actions.WithLabelValues(normalizeLabel(kind)).Inc()
}

// AddApplied records applied action count for a run.
func (m *ReconcileMetrics) AddApplied(n int) {
	if m == nil || m.applied == nil {
		return
	}
	m.applied.Add(float64(n))
}

// AddFailed records failed action count for a run.
func (m *ReconcileMetrics) AddFailed(n int) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.Add(float64(n))
}

// AddOrphans records how many orphaned entitlements a run flagged.
func (m *ReconcileMetrics) AddOrphans(n int) {
	if m == nil || m.orphans == nil {
		return
	}
	m.orphans.Add(float64(n))
}

// AddUsersSeen records how many users a run examined.
func (m *ReconcileMetrics) AddUsersSeen(n int) {
	if m == nil || m.usersSeen == nil {
		return
	}
	m.usersSeen.Add(float64(n))
}
