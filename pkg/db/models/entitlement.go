package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/orato-ai/orato-backend/pkg/enums"
)

// Entitlement is the materialized access record for a user.
//
// Invariant: a paid tier implies status=active and a non-null plan key.
// Reconciliation exists to repair rows that drift from this.
type Entitlement struct {
	UserID    uuid.UUID               `gorm:"column:user_id;type:uuid;primaryKey"`
	Tier      enums.EntitlementTier   `gorm:"column:tier;type:entitlement_tier;not null;default:'free'"`
	PlanKey   *string                 `gorm:"column:plan_key"`
	Status    enums.EntitlementStatus `gorm:"column:status;type:entitlement_status;not null;default:'none'"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Entitlement) TableName() string { return "entitlements" }
