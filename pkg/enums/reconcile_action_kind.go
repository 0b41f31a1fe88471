package enums

import "fmt"

// ReconcileActionKind tags a reconciliation decision.
type ReconcileActionKind string

const (
	ActionGrant      ReconcileActionKind = "grant"
	ActionDowngrade  ReconcileActionKind = "downgrade"
	ActionFixPlanKey ReconcileActionKind = "fix_plan_key"
	ActionNoop       ReconcileActionKind = "noop"
)

var validReconcileActionKinds = []ReconcileActionKind{
	ActionGrant,
	ActionDowngrade,
	ActionFixPlanKey,
	ActionNoop,
}

// String implements fmt.Stringer.
func (k ReconcileActionKind) String() string {
	return string(k)
}

// IsValid reports whether the value is known.
func (k ReconcileActionKind) IsValid() bool {
	for _, candidate := range validReconcileActionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseReconcileActionKind converts raw input into a ReconcileActionKind.
func ParseReconcileActionKind(value string) (ReconcileActionKind, error) {
	for _, candidate := range validReconcileActionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reconcile action kind %q", value)
}
