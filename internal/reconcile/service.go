package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/orato-ai/orato-backend/internal/entitlements"
	"github.com/orato-ai/orato-backend/internal/events"
	"github.com/orato-ai/orato-backend/pkg/db/models"
	"github.com/orato-ai/orato-backend/pkg/enums"
	"github.com/orato-ai/orato-backend/pkg/logger"
	"github.com/orato-ai/orato-backend/pkg/metrics"
)

// batchSize bounds a single entitlement lookup query.
const batchSize = 200

// Service orchestrates a reconciliation run: fetch events, derive expected
// state per user, diff, apply, then sweep for orphaned entitlements.
type Service struct {
	logg         *logger.Logger
	events       events.Repository
	entitlements entitlements.Repository
	applier      *Applier
	metrics      *metrics.ReconcileMetrics
	lookback     time.Duration
	now          func() time.Time
}

// ServiceParams groups the orchestrator dependencies. Metrics and Now are
// optional.
type ServiceParams struct {
	Logger       *logger.Logger
	Events       events.Repository
	Entitlements entitlements.Repository
	Applier      *Applier
	Metrics      *metrics.ReconcileMetrics
	Lookback     time.Duration
	Now          func() time.Time
}

// NewService builds a reconciliation orchestrator.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("events repo required")
	}
	if params.Entitlements == nil {
		return nil, fmt.Errorf("entitlements repo required")
	}
	if params.Applier == nil {
		return nil, fmt.Errorf("applier required")
	}
	if params.Lookback <= 0 {
		return nil, fmt.Errorf("lookback must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:         params.Logger,
		events:       params.Events,
		entitlements: params.Entitlements,
		applier:      params.Applier,
		metrics:      params.Metrics,
		lookback:     params.Lookback,
		now:          now,
	}, nil
}

// Run executes one reconciliation pass. A single user's apply failure is
// recorded and does not abort the batch; the returned error aggregates the
// per-user failures while the summary still covers every user examined.
func (s *Service) Run(ctx context.Context, params RunParams) (*Summary, error) {
	since := s.now().UTC().Add(-s.lookback)
	if params.Since != nil {
		since = params.Since.UTC()
	}
	ctx = s.logg.WithRunID(ctx, uuid.NewString())

	summary := &Summary{Since: since, DryRun: params.DryRun, Actions: []Action{}}

	allEvents, err := s.events.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("listing events since %s: %w", since.Format(time.RFC3339), err)
	}

	grouped := make(map[uuid.UUID][]models.BillingEvent)
	for _, event := range allEvents {
		if event.UserID == nil {
			// Events without a resolvable user can never drive a per-user
			// decision. Counted, not an error.
			summary.SkippedNoUser++
			continue
		}
		grouped[*event.UserID] = append(grouped[*event.UserID], event)
	}

	userIDs := make([]uuid.UUID, 0, len(grouped))
	for id := range grouped {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool {
		return userIDs[i].String() < userIDs[j].String()
	})
	if params.LimitUsers > 0 && len(userIDs) > params.LimitUsers {
		userIDs = userIDs[:params.LimitUsers]
	}

	current, err := s.loadEntitlements(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	var applyErrs error
	decided := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, userID := range userIDs {
		decided[userID] = struct{}{}
		summary.UsersSeen++

		expected, relatedEventID := DeriveExpectedState(grouped[userID])
		action := Diff(userID, current[userID], expected, relatedEventID)
		applyErrs = multierr.Append(applyErrs, s.record(ctx, summary, action, params.DryRun))
	}

	orphanActions, err := s.detectOrphans(ctx, since, decided)
	if err != nil {
		return nil, err
	}
	if params.LimitUsers > 0 && len(orphanActions) > params.LimitUsers {
		orphanActions = orphanActions[:params.LimitUsers]
	}
	summary.Orphans = len(orphanActions)
	s.metrics.AddOrphans(len(orphanActions))
	for _, action := range orphanActions {
		applyErrs = multierr.Append(applyErrs, s.record(ctx, summary, action, params.DryRun))
	}

	s.metrics.AddUsersSeen(summary.UsersSeen)
	s.metrics.AddApplied(summary.Applied)
	s.metrics.AddFailed(summary.Failed)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"since":           since.Format(time.RFC3339),
		"dry_run":         params.DryRun,
		"users_seen":      summary.UsersSeen,
		"actions":         len(summary.Actions),
		"applied":         summary.Applied,
		"failed":          summary.Failed,
		"orphans":         summary.Orphans,
		"skipped_no_user": summary.SkippedNoUser,
	})
	s.logg.Info(logCtx, "reconciliation run complete")

	return summary, applyErrs
}

// record tallies one decision and applies it unless this is a dry run.
func (s *Service) record(ctx context.Context, summary *Summary, action Action, dryRun bool) error {
	s.metrics.IncAction(action.Kind.String())
	if action.Kind == enums.ActionNoop {
		return nil
	}
	summary.Actions = append(summary.Actions, action)
	if dryRun {
		return nil
	}

	if err := s.applier.Apply(ctx, action); err != nil {
		summary.Failed++
		logCtx := s.logg.WithUserID(ctx, action.UserID.String())
		s.logg.Error(logCtx, "applying reconciliation action", err)
		return fmt.Errorf("user %s: %w", action.UserID, err)
	}
	summary.Applied++
	return nil
}

// loadEntitlements batches the current-state reads so one run does not
// issue an unbounded IN clause.
func (s *Service) loadEntitlements(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.Entitlement, error) {
	out := make(map[uuid.UUID]*models.Entitlement, len(userIDs))
	for start := 0; start < len(userIDs); start += batchSize {
		end := start + batchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		batch, err := s.entitlements.GetByUserIDs(ctx, userIDs[start:end])
		if err != nil {
			return nil, fmt.Errorf("loading entitlements: %w", err)
		}
		for id, row := range batch {
			out[id] = row
		}
	}
	return out, nil
}
