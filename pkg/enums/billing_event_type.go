package enums

import "fmt"

// BillingEventType is the normalized, provider-agnostic billing event kind.
type BillingEventType string

const (
	EventPaymentSucceeded     BillingEventType = "payment_succeeded"
	EventPaymentRefunded      BillingEventType = "payment_refunded"
	EventSubscriptionCreated  BillingEventType = "subscription_created"
	EventSubscriptionUpdated  BillingEventType = "subscription_updated"
	EventSubscriptionCanceled BillingEventType = "subscription_canceled"
	EventUnknown              BillingEventType = "unknown"
)

var validBillingEventTypes = []BillingEventType{
	EventPaymentSucceeded,
	EventPaymentRefunded,
	EventSubscriptionCreated,
	EventSubscriptionUpdated,
	EventSubscriptionCanceled,
	EventUnknown,
}

// supportingEventTypes are the kinds that count as evidence a paid
// entitlement is still backed by billing history.
var supportingEventTypes = []BillingEventType{
	EventPaymentSucceeded,
	EventSubscriptionCreated,
	EventSubscriptionUpdated,
}

// String implements fmt.Stringer.
func (e BillingEventType) String() string {
	return string(e)
}

// IsValid reports whether the value is known.
func (e BillingEventType) IsValid() bool {
	for _, candidate := range validBillingEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// IsSupporting reports whether the event type supports an active paid
// entitlement for orphan detection purposes.
func (e BillingEventType) IsSupporting() bool {
	for _, candidate := range supportingEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// SupportingBillingEventTypes returns the event types that back a paid
// entitlement, for use in queries.
func SupportingBillingEventTypes() []BillingEventType {
	out := make([]BillingEventType, len(supportingEventTypes))
	copy(out, supportingEventTypes)
	return out
}

// ParseBillingEventType converts raw input into a BillingEventType.
func ParseBillingEventType(value string) (BillingEventType, error) {
	for _, candidate := range validBillingEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing event type %q", value)
}
