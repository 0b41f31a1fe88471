package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/orato-ai/orato-backend/pkg/enums"
)

// EntitlementCorrection is the append-only audit record of a
// reconciliation-driven mutation. The ID is derived deterministically from
// the action ({kind}:{user}:{plan|-}), so re-applying the same batch is a
// no-op at the store level.
type EntitlementCorrection struct {
	ID             string                    `gorm:"column:id;primaryKey"`
	UserID         uuid.UUID                 `gorm:"column:user_id;type:uuid;not null;index"`
	ActionKind     enums.ReconcileActionKind `gorm:"column:action_kind;type:reconcile_action_kind;not null"`
	Reason         string                    `gorm:"column:reason;not null"`
	Before         json.RawMessage           `gorm:"column:before;type:jsonb"`
	After          json.RawMessage           `gorm:"column:after;type:jsonb"`
	RelatedEventID *string                   `gorm:"column:related_event_id"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (EntitlementCorrection) TableName() string { return "entitlement_corrections" }
