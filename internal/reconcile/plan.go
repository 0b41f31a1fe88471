package reconcile

import (
	"strings"

	"github.com/orato-ai/orato-backend/pkg/enums"
)

// TierForPlanKey maps a commercial plan key onto an entitlement tier.
// Unmapped keys return (TierFree, false): a plan the catalog does not
// recognize carries no entitlement information and must never default to a
// paid tier.
func TierForPlanKey(planKey string) (enums.EntitlementTier, bool) {
	key := strings.ToLower(strings.TrimSpace(planKey))
	switch {
	case key == "":
		return enums.TierFree, false
	case strings.HasPrefix(key, "vip"):
		return enums.TierVIP, true
	case strings.HasPrefix(key, "pro"):
		return enums.TierPro, true
	}
	return enums.TierFree, false
}
