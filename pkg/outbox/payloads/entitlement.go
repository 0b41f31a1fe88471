package payloads

import (
	"github.com/google/uuid"

	"github.com/orato-ai/orato-backend/pkg/enums"
)

// EntitlementCorrected is published whenever reconciliation writes a new
// correction. Downstream consumers (notifications, analytics) key on the
// correction id, which is stable across replays.
type EntitlementCorrected struct {
	CorrectionID   string                    `json:"correctionId"`
	UserID         uuid.UUID                 `json:"userId"`
	ActionKind     enums.ReconcileActionKind `json:"actionKind"`
	Tier           enums.EntitlementTier     `json:"tier,omitempty"`
	PlanKey        *string                   `json:"planKey,omitempty"`
	Reason         string                    `json:"reason"`
	RelatedEventID *string                   `json:"relatedEventId,omitempty"`
}
