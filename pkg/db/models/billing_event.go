package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orato-ai/orato-backend/pkg/enums"
)

// BillingEvent is an immutable, normalized fact about a billing occurrence.
// The provider-assigned ID doubles as the ingestion idempotency key.
type BillingEvent struct {
	ID         string                 `gorm:"column:id;primaryKey"`
	Provider   enums.PaymentProvider  `gorm:"column:provider;type:payment_provider;not null"`
	Type       enums.BillingEventType `gorm:"column:type;type:billing_event_type;not null"`
	OccurredAt time.Time              `gorm:"column:occurred_at;not null;index"`
	PlanKey    *string                `gorm:"column:plan_key"`
	UserID     *uuid.UUID             `gorm:"column:user_id;type:uuid;index"`

	// Carried through for the audit trail; not consulted by state derivation.
	Amount         decimal.NullDecimal `gorm:"column:amount;type:numeric(12,2)"`
	Currency       *string             `gorm:"column:currency"`
	CustomerID     *string             `gorm:"column:customer_id"`
	SubscriptionID *string             `gorm:"column:subscription_id"`
	InvoiceID      *string             `gorm:"column:invoice_id"`
	RequestID      *string             `gorm:"column:request_id"`

	// RawType preserves the provider-native or legacy free-text vocabulary
	// the normalized Type was translated from.
	RawType string `gorm:"column:raw_type"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (BillingEvent) TableName() string { return "billing_events" }
