package reconcile

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orato-ai/orato-backend/pkg/db/models"
	"github.com/orato-ai/orato-backend/pkg/enums"
)

func activeExpected(planKey string, tier enums.EntitlementTier) ExpectedState {
	return ExpectedState{
		Status:  enums.EntitlementStatusActive,
		PlanKey: &planKey,
		Tier:    tier,
	}
}

func paidEntitlement(userID uuid.UUID, tier enums.EntitlementTier, planKey string) *models.Entitlement {
	return &models.Entitlement{
		UserID:  userID,
		Tier:    tier,
		PlanKey: &planKey,
		Status:  enums.EntitlementStatusActive,
	}
}

func TestDiffNoRecordAndNothingExpectedIsNoop(t *testing.T) {
	userID := uuid.New()
	action := Diff(userID, nil, freeState(enums.EntitlementStatusNone), nil)
	assert.Equal(t, enums.ActionNoop, action.Kind)
	assert.Equal(t, userID, action.UserID)
}

func TestDiffFreeRecordAndCanceledExpectedIsNoop(t *testing.T) {
	userID := uuid.New()
	current := &models.Entitlement{UserID: userID, Tier: enums.TierFree, Status: enums.EntitlementStatusNone}
	action := Diff(userID, current, freeState(enums.EntitlementStatusCanceled), nil)
	assert.Equal(t, enums.ActionNoop, action.Kind)
}

func TestDiffPaidRecordWithNothingExpectedDowngrades(t *testing.T) {
	userID := uuid.New()
	eventID := "evt_cancel"
	action := Diff(userID, paidEntitlement(userID, enums.TierVIP, "vip_yearly"), freeState(enums.EntitlementStatusCanceled), &eventID)
	assert.Equal(t, enums.ActionDowngrade, action.Kind)
	assert.Equal(t, enums.TierFree, action.Tier)
	require.NotNil(t, action.RelatedEventID)
	assert.Equal(t, "evt_cancel", *action.RelatedEventID)
	assert.NotEmpty(t, action.Reason)
}

func TestDiffMissingRecordWithActivePlanGrants(t *testing.T) {
	userID := uuid.New()
	eventID := "evt_sub"
	action := Diff(userID, nil, activeExpected("pro_monthly", enums.TierPro), &eventID)
	assert.Equal(t, enums.ActionGrant, action.Kind)
	require.NotNil(t, action.PlanKey)
	assert.Equal(t, "pro_monthly", *action.PlanKey)
	assert.Equal(t, enums.TierPro, action.Tier)
}

func TestDiffFreeRecordWithActivePlanGrants(t *testing.T) {
	userID := uuid.New()
	current := &models.Entitlement{UserID: userID, Tier: enums.TierFree, Status: enums.EntitlementStatusNone}
	action := Diff(userID, current, activeExpected("vip_yearly", enums.TierVIP), nil)
	assert.Equal(t, enums.ActionGrant, action.Kind)
	assert.Equal(t, enums.TierVIP, action.Tier)
}

func TestDiffWrongPlanGetsFixed(t *testing.T) {
	userID := uuid.New()
	action := Diff(userID, paidEntitlement(userID, enums.TierPro, "pro_monthly"), activeExpected("vip_yearly", enums.TierVIP), nil)
	assert.Equal(t, enums.ActionFixPlanKey, action.Kind)
	require.NotNil(t, action.PlanKey)
	assert.Equal(t, "vip_yearly", *action.PlanKey)
	assert.Equal(t, enums.TierVIP, action.Tier)
}

func TestDiffWrongTierOnMatchingPlanGetsFixed(t *testing.T) {
	userID := uuid.New()
	action := Diff(userID, paidEntitlement(userID, enums.TierPro, "vip_yearly"), activeExpected("vip_yearly", enums.TierVIP), nil)
	assert.Equal(t, enums.ActionFixPlanKey, action.Kind)
}

func TestDiffMatchingStateIsNoop(t *testing.T) {
	userID := uuid.New()
	action := Diff(userID, paidEntitlement(userID, enums.TierVIP, "vip_yearly"), activeExpected("vip_yearly", enums.TierVIP), nil)
	assert.Equal(t, enums.ActionNoop, action.Kind)
}

func TestCorrectionIDIsDeterministic(t *testing.T) {
	userID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	planKey := "pro_monthly"
	grant := Action{Kind: enums.ActionGrant, UserID: userID, PlanKey: &planKey, Tier: enums.TierPro}
	assert.Equal(t, "grant:22222222-2222-2222-2222-222222222222:pro_monthly", grant.CorrectionID())

	downgrade := Action{Kind: enums.ActionDowngrade, UserID: userID}
	assert.Equal(t, "downgrade:22222222-2222-2222-2222-222222222222:-", downgrade.CorrectionID())

	// Same decision in two different runs collapses onto the same id.
	assert.Equal(t, grant.CorrectionID(), Action{Kind: enums.ActionGrant, UserID: userID, PlanKey: &planKey, Tier: enums.TierPro}.CorrectionID())
}
