package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/orato-ai/orato-backend/internal/reconcile"
	pkgerrors "github.com/orato-ai/orato-backend/pkg/errors"
	"github.com/orato-ai/orato-backend/pkg/logger"
)

// reconcileRunner is the reconciliation surface the cron job drives.
type reconcileRunner interface {
	Run(ctx context.Context, params reconcile.RunParams) (*reconcile.Summary, error)
}

// EntitlementReconcileJobParams configures the entitlement healing job.
type EntitlementReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler reconcileRunner
	DryRun     bool
	LimitUsers int
}

// NewEntitlementReconcileJob wraps the reconciliation service as a cron job.
func NewEntitlementReconcileJob(params EntitlementReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &entitlementReconcileJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
		dryRun:     params.DryRun,
		limitUsers: params.LimitUsers,
	}, nil
}

type entitlementReconcileJob struct {
	logg       *logger.Logger
	reconciler reconcileRunner
	dryRun     bool
	limitUsers int
}

func (j *entitlementReconcileJob) Name() string { return "entitlement-reconcile" }

// Run executes one reconciliation pass. Per-user failures are already
// aggregated by the service; surfacing them here marks the cycle failed
// while the next scheduled run retries the affected users.
func (j *entitlementReconcileJob) Run(ctx context.Context) error {
	summary, err := j.reconciler.Run(ctx, reconcile.RunParams{
		DryRun:     j.dryRun,
		LimitUsers: j.limitUsers,
	})
	if summary != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"since":           summary.Since.Format(time.RFC3339),
			"dry_run":         summary.DryRun,
			"users_seen":      summary.UsersSeen,
			"actions":         len(summary.Actions),
			"applied":         summary.Applied,
			"failed":          summary.Failed,
			"orphans":         summary.Orphans,
			"skipped_no_user": summary.SkippedNoUser,
		})
		j.logg.Info(logCtx, "entitlement reconcile cycle finished")
	}
	if err != nil {
		logCtx := j.logg.WithField(ctx, "retryable", pkgerrors.IsRetryable(err))
		j.logg.Warn(logCtx, "entitlement reconcile cycle had failures")
		return fmt.Errorf("entitlement reconcile: %w", err)
	}
	return nil
}
