package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/orato-ai/orato-backend/internal/entitlements"
	"github.com/orato-ai/orato-backend/pkg/db/models"
	"github.com/orato-ai/orato-backend/pkg/enums"
	pkgerrors "github.com/orato-ai/orato-backend/pkg/errors"
	"github.com/orato-ai/orato-backend/pkg/logger"
	"github.com/orato-ai/orato-backend/pkg/outbox"
	"github.com/orato-ai/orato-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Applier executes reconciliation actions: one entitlement mutation plus
// one idempotent audit correction, inside a single transaction.
type Applier struct {
	logg         *logger.Logger
	txRunner     txRunner
	entitlements entitlements.Repository
	outbox       outboxEmitter
}

// ApplierParams groups the applier dependencies. Outbox is optional.
type ApplierParams struct {
	Logger            *logger.Logger
	TransactionRunner txRunner
	Entitlements      entitlements.Repository
	Outbox            outboxEmitter
}

// NewApplier builds an applier with the required dependencies.
func NewApplier(params ApplierParams) (*Applier, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Entitlements == nil {
		return nil, fmt.Errorf("entitlements repo required")
	}
	return &Applier{
		logg:         params.Logger,
		txRunner:     params.TransactionRunner,
		entitlements: params.Entitlements,
		outbox:       params.Outbox,
	}, nil
}

// entitlementSnapshot is the before/after shape stored on corrections.
type entitlementSnapshot struct {
	Tier    enums.EntitlementTier   `json:"tier"`
	PlanKey *string                 `json:"plan_key"`
	Status  enums.EntitlementStatus `json:"status"`
}

func snapshotJSON(row *models.Entitlement) (json.RawMessage, error) {
	if row == nil {
		return json.RawMessage("null"), nil
	}
	raw, err := json.Marshal(entitlementSnapshot{
		Tier:    row.Tier,
		PlanKey: row.PlanKey,
		Status:  row.Status,
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Apply executes a single non-noop action. Re-applying the same action is
// safe: the mutation converges and the correction append absorbs the
// duplicate id, in which case no outbox event is emitted either.
func (a *Applier) Apply(ctx context.Context, action Action) error {
	switch action.Kind {
	case enums.ActionNoop:
		return nil
	case enums.ActionGrant, enums.ActionFixPlanKey:
		if action.PlanKey == nil || *action.PlanKey == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s requires a plan key", action.Kind))
		}
	case enums.ActionDowngrade:
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown action kind %q", action.Kind))
	}

	return a.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := a.entitlements.WithTx(tx)

		before, err := repo.Find(ctx, action.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading entitlement")
		}

		switch action.Kind {
		case enums.ActionGrant, enums.ActionFixPlanKey:
			err = repo.SetEntitlement(ctx, action.UserID, action.Tier, *action.PlanKey)
		case enums.ActionDowngrade:
			err = repo.SetFree(ctx, action.UserID)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mutating entitlement")
		}

		after, err := repo.Find(ctx, action.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reloading entitlement")
		}

		beforeJSON, err := snapshotJSON(before)
		if err != nil {
			return err
		}
		afterJSON, err := snapshotJSON(after)
		if err != nil {
			return err
		}

		inserted, err := repo.AppendCorrection(ctx, &models.EntitlementCorrection{
			ID:             action.CorrectionID(),
			UserID:         action.UserID,
			ActionKind:     action.Kind,
			Reason:         action.Reason,
			Before:         beforeJSON,
			After:          afterJSON,
			RelatedEventID: action.RelatedEventID,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "appending correction")
		}

		if inserted && a.outbox != nil {
			err = a.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventEntitlementCorrected,
				AggregateType: enums.AggregateEntitlement,
				AggregateID:   action.UserID,
				Data: payloads.EntitlementCorrected{
					CorrectionID:   action.CorrectionID(),
					UserID:         action.UserID,
					ActionKind:     action.Kind,
					Tier:           action.Tier,
					PlanKey:        action.PlanKey,
					Reason:         action.Reason,
					RelatedEventID: action.RelatedEventID,
				},
			})
			if err != nil {
				return fmt.Errorf("queueing outbox event: %w", err)
			}
		}

		logCtx := a.logg.WithFields(ctx, map[string]any{
			"user_id":       action.UserID.String(),
			"action":        action.Kind.String(),
			"correction_id": action.CorrectionID(),
			"replayed":      !inserted,
		})
		a.logg.Info(logCtx, "reconciliation action applied")
		return nil
	})
}
