package reconcile

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/orato-ai/orato-backend/pkg/db/models"
	"github.com/orato-ai/orato-backend/pkg/enums"
)

// Diff compares a user's current entitlement against the expected state
// and decides the single action that heals the gap. The engine never grants
// a tier without an explicit, recognized plan key in event history, and a
// newer decisive event always beats an older one.
func Diff(userID uuid.UUID, current *models.Entitlement, expected ExpectedState, relatedEventID *string) Action {
	noop := Action{Kind: enums.ActionNoop, UserID: userID}

	if !expected.Active() {
		if current == nil || !current.Tier.IsPaid() {
			return noop
		}
		return Action{
			Kind:           enums.ActionDowngrade,
			UserID:         userID,
			Tier:           enums.TierFree,
			Reason:         fmt.Sprintf("latest decisive event shows %s entitlement but store has paid tier %s", expected.Status, current.Tier),
			RelatedEventID: relatedEventID,
		}
	}

	if current == nil || !current.Tier.IsPaid() {
		return Action{
			Kind:           enums.ActionGrant,
			UserID:         userID,
			PlanKey:        expected.PlanKey,
			Tier:           expected.Tier,
			Reason:         fmt.Sprintf("events show active %s plan but store has no paid entitlement", *expected.PlanKey),
			RelatedEventID: relatedEventID,
		}
	}

	// Tier is derived from the plan key, so a tier mismatch on a matching
	// plan is the same drift and takes the same repair.
	if current.PlanKey == nil || *current.PlanKey != *expected.PlanKey || current.Tier != expected.Tier {
		return Action{
			Kind:           enums.ActionFixPlanKey,
			UserID:         userID,
			PlanKey:        expected.PlanKey,
			Tier:           expected.Tier,
			Reason:         fmt.Sprintf("store plan %s does not match event-derived plan %s", planOrDash(current.PlanKey), *expected.PlanKey),
			RelatedEventID: relatedEventID,
		}
	}

	return noop
}

func planOrDash(planKey *string) string {
	if planKey == nil || *planKey == "" {
		return "-"
	}
	return *planKey
}
