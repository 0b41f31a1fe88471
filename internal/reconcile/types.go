package reconcile

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orato-ai/orato-backend/pkg/enums"
)

// ExpectedState is the entitlement a user's event history says they should
// have.
type ExpectedState struct {
	Status  enums.EntitlementStatus
	PlanKey *string
	Tier    enums.EntitlementTier
}

// Active reports whether the expected state represents a live paid
// entitlement.
func (e ExpectedState) Active() bool {
	return e.Status == enums.EntitlementStatusActive && e.PlanKey != nil
}

func freeState(status enums.EntitlementStatus) ExpectedState {
	return ExpectedState{Status: status, Tier: enums.TierFree}
}

// Action is a single reconciliation decision for one user.
type Action struct {
	Kind           enums.ReconcileActionKind `json:"kind"`
	UserID         uuid.UUID                 `json:"user_id"`
	PlanKey        *string                   `json:"plan_key,omitempty"`
	Tier           enums.EntitlementTier     `json:"tier,omitempty"`
	Reason         string                    `json:"reason"`
	RelatedEventID *string                   `json:"related_event_id,omitempty"`
}

// CorrectionID derives the deterministic audit key for this action. Two
// identical decisions in different runs collapse onto the same correction.
func (a Action) CorrectionID() string {
	plan := "-"
	if a.PlanKey != nil && *a.PlanKey != "" {
		plan = *a.PlanKey
	}
	return fmt.Sprintf("%s:%s:%s", a.Kind, a.UserID, plan)
}

// Summary aggregates one reconciliation run.
type Summary struct {
	Since         time.Time `json:"since"`
	DryRun        bool      `json:"dry_run"`
	UsersSeen     int       `json:"users_seen"`
	Actions       []Action  `json:"actions"`
	Applied       int       `json:"applied"`
	Failed        int       `json:"failed"`
	Orphans       int       `json:"orphans"`
	SkippedNoUser int       `json:"skipped_no_user"`
}

// RunParams tunes a single reconciliation run.
type RunParams struct {
	// Since overrides the configured lookback checkpoint when non-nil.
	Since *time.Time
	// DryRun computes and reports actions without applying them.
	DryRun bool
	// LimitUsers caps how many users are processed; zero means no cap.
	LimitUsers int
}
