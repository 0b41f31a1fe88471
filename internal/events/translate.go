package events

import (
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/orato-ai/orato-backend/pkg/enums"
)

// stripeEventTypes maps provider-native Stripe event names onto the
// normalized vocabulary. Anything not listed falls through to the legacy
// free-text matcher.
var stripeEventTypes = map[stripe.EventType]enums.BillingEventType{
	stripe.EventTypeCustomerSubscriptionCreated: enums.EventSubscriptionCreated,
	stripe.EventTypeCustomerSubscriptionUpdated: enums.EventSubscriptionUpdated,
	stripe.EventTypeCustomerSubscriptionDeleted: enums.EventSubscriptionCanceled,
	stripe.EventTypeInvoicePaid:                 enums.EventPaymentSucceeded,
	stripe.EventTypeInvoicePaymentSucceeded:     enums.EventPaymentSucceeded,
	stripe.EventTypeChargeRefunded:              enums.EventPaymentRefunded,
}

var squareEventTypes = map[string]enums.BillingEventType{
	"subscription.created": enums.EventSubscriptionCreated,
	"subscription.updated": enums.EventSubscriptionUpdated,
	"subscription.deleted": enums.EventSubscriptionCanceled,
	"payment.created":      enums.EventPaymentSucceeded,
	"payment.updated":      enums.EventPaymentSucceeded,
	"refund.created":       enums.EventPaymentRefunded,
	"refund.updated":       enums.EventPaymentRefunded,
}

// NormalizeEventType translates a provider-native or legacy free-text event
// type into the normalized vocabulary. Unrecognized input maps to
// EventUnknown rather than an error: unknown events are kept for audit but
// never drive a decision.
func NormalizeEventType(provider enums.PaymentProvider, raw string) enums.BillingEventType {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return enums.EventUnknown
	}

	switch provider {
	case enums.ProviderStripe:
		if mapped, ok := stripeEventTypes[stripe.EventType(trimmed)]; ok {
			return mapped
		}
	case enums.ProviderSquare:
		if mapped, ok := squareEventTypes[trimmed]; ok {
			return mapped
		}
	}

	return normalizeLegacyType(trimmed)
}

// normalizeLegacyType handles the free-text statuses written by older
// ingestion paths ("entitlement_granted", "Refund issued", ...). Matching is
// substring-based and case-insensitive because the legacy rows never had a
// fixed vocabulary.
func normalizeLegacyType(raw string) enums.BillingEventType {
	if parsed, err := enums.ParseBillingEventType(raw); err == nil {
		return parsed
	}

	lowered := strings.ToLower(raw)
	switch {
	case strings.Contains(lowered, "cancel"):
		return enums.EventSubscriptionCanceled
	case strings.Contains(lowered, "refund"), strings.Contains(lowered, "chargeback"):
		return enums.EventPaymentRefunded
	case strings.Contains(lowered, "grant"):
		return enums.EventSubscriptionCreated
	case strings.Contains(lowered, "renew"):
		return enums.EventSubscriptionUpdated
	case strings.Contains(lowered, "paid"),
		strings.Contains(lowered, "succe"),
		strings.Contains(lowered, "captur"),
		strings.Contains(lowered, "complete"):
		return enums.EventPaymentSucceeded
	}
	return enums.EventUnknown
}
