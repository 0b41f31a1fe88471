package reconcile

import (
	"sort"

	"github.com/orato-ai/orato-backend/pkg/db/models"
	"github.com/orato-ai/orato-backend/pkg/enums"
)

// DeriveExpectedState reduces one user's event history to the entitlement
// state it implies. It also returns the id of the decisive event, when one
// exists, for the audit trail.
//
// Rules are evaluated in precedence order; the first match wins:
//  1. Any cancellation wins outright. Cancellation is sticky and is not
//     overridden by older success events.
//  2. A refund with no strictly newer successful payment clears the
//     entitlement. A later resubscription overrides the refund.
//  3. The newest subscription event carrying a recognized plan key grants
//     that plan.
//  4. Failing that, the newest successful payment carrying a recognized
//     plan key grants that plan.
//  5. Silence means no entitlement. Absence of decisive evidence is never
//     treated as confirmation of existing paid state.
func DeriveExpectedState(history []models.BillingEvent) (ExpectedState, *string) {
	events := make([]models.BillingEvent, len(history))
	copy(events, history)
	sort.Slice(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.After(events[j].OccurredAt)
		}
		return events[i].ID < events[j].ID
	})

	if canceled := newestOfType(events, enums.EventSubscriptionCanceled); canceled != nil {
		return freeState(enums.EntitlementStatusCanceled), &canceled.ID
	}

	if refund := newestOfType(events, enums.EventPaymentRefunded); refund != nil {
		if !hasSuccessAfter(events, refund) {
			return freeState(enums.EntitlementStatusNone), &refund.ID
		}
	}

	if state, eventID, ok := newestPlanBearing(events, enums.EventSubscriptionUpdated, enums.EventSubscriptionCreated); ok {
		return state, eventID
	}
	if state, eventID, ok := newestPlanBearing(events, enums.EventPaymentSucceeded); ok {
		return state, eventID
	}

	return freeState(enums.EntitlementStatusNone), nil
}

// newestOfType returns the newest event of the given type, or nil. The
// input must already be sorted newest-first.
func newestOfType(events []models.BillingEvent, eventType enums.BillingEventType) *models.BillingEvent {
	for i := range events {
		if events[i].Type == eventType {
			return &events[i]
		}
	}
	return nil
}

// hasSuccessAfter reports whether a payment_succeeded event strictly newer
// than the marker exists.
func hasSuccessAfter(events []models.BillingEvent, marker *models.BillingEvent) bool {
	for i := range events {
		if events[i].Type == enums.EventPaymentSucceeded && events[i].OccurredAt.After(marker.OccurredAt) {
			return true
		}
	}
	return false
}

// newestPlanBearing finds the newest event among the given types that
// carries a plan key the catalog recognizes. Events with absent or unmapped
// plan keys are skipped, never defaulted.
func newestPlanBearing(events []models.BillingEvent, types ...enums.BillingEventType) (ExpectedState, *string, bool) {
	for i := range events {
		event := &events[i]
		matched := false
		for _, candidate := range types {
			if event.Type == candidate {
				matched = true
				break
			}
		}
		if !matched || event.PlanKey == nil {
			continue
		}
		tier, ok := TierForPlanKey(*event.PlanKey)
		if !ok {
			continue
		}
		return ExpectedState{
			Status:  enums.EntitlementStatusActive,
			PlanKey: event.PlanKey,
			Tier:    tier,
		}, &event.ID, true
	}
	return ExpectedState{}, nil, false
}
