package enums

import "fmt"

// EntitlementTier is the access level a user's entitlement grants.
type EntitlementTier string

const (
	TierFree EntitlementTier = "free"
	TierPro  EntitlementTier = "pro"
	TierVIP  EntitlementTier = "vip"
)

var validEntitlementTiers = []EntitlementTier{
	TierFree,
	TierPro,
	TierVIP,
}

// String implements fmt.Stringer.
func (t EntitlementTier) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t EntitlementTier) IsValid() bool {
	for _, candidate := range validEntitlementTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsPaid reports whether the tier grants paid access.
func (t EntitlementTier) IsPaid() bool {
	return t == TierPro || t == TierVIP
}

// ParseEntitlementTier converts raw input into an EntitlementTier.
func ParseEntitlementTier(value string) (EntitlementTier, error) {
	for _, candidate := range validEntitlementTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entitlement tier %q", value)
}
