package enums

import "fmt"

// EntitlementStatus describes the lifecycle state of an entitlement.
type EntitlementStatus string

const (
	EntitlementStatusActive   EntitlementStatus = "active"
	EntitlementStatusCanceled EntitlementStatus = "canceled"
	EntitlementStatusNone     EntitlementStatus = "none"
)

var validEntitlementStatuses = []EntitlementStatus{
	EntitlementStatusActive,
	EntitlementStatusCanceled,
	EntitlementStatusNone,
}

// String implements fmt.Stringer.
func (s EntitlementStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s EntitlementStatus) IsValid() bool {
	for _, candidate := range validEntitlementStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEntitlementStatus converts raw input into an EntitlementStatus.
func ParseEntitlementStatus(value string) (EntitlementStatus, error) {
	for _, candidate := range validEntitlementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entitlement status %q", value)
}
