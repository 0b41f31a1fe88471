package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orato-ai/orato-backend/internal/entitlements"
	"github.com/orato-ai/orato-backend/internal/events"
	"github.com/orato-ai/orato-backend/pkg/db/models"
	"github.com/orato-ai/orato-backend/pkg/enums"
)

type stubEventsRepo struct {
	events []models.BillingEvent
}

func (s *stubEventsRepo) WithTx(*gorm.DB) events.Repository { return s }

func (s *stubEventsRepo) Insert(_ context.Context, event *models.BillingEvent) (bool, error) {
	s.events = append(s.events, *event)
	return true, nil
}

func (s *stubEventsRepo) ListSince(_ context.Context, since time.Time) ([]models.BillingEvent, error) {
	var out []models.BillingEvent
	for _, event := range s.events {
		if !event.OccurredAt.Before(since) {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *stubEventsRepo) ListSupportedUserIDs(_ context.Context, since time.Time) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, event := range s.events {
		if event.UserID == nil || event.OccurredAt.Before(since) || !event.Type.IsSupporting() {
			continue
		}
		if _, ok := seen[*event.UserID]; ok {
			continue
		}
		seen[*event.UserID] = struct{}{}
		out = append(out, *event.UserID)
	}
	return out, nil
}

type stubEntitlementsRepo struct {
	rows        map[uuid.UUID]*models.Entitlement
	corrections map[string]models.EntitlementCorrection
	failUsers   map[uuid.UUID]bool
}

func newStubEntitlementsRepo() *stubEntitlementsRepo {
	return &stubEntitlementsRepo{
		rows:        make(map[uuid.UUID]*models.Entitlement),
		corrections: make(map[string]models.EntitlementCorrection),
		failUsers:   make(map[uuid.UUID]bool),
	}
}

func (s *stubEntitlementsRepo) WithTx(*gorm.DB) entitlements.Repository { return s }

func (s *stubEntitlementsRepo) Find(_ context.Context, userID uuid.UUID) (*models.Entitlement, error) {
	row, ok := s.rows[userID]
	if !ok {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (s *stubEntitlementsRepo) GetByUserIDs(_ context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.Entitlement, error) {
	out := make(map[uuid.UUID]*models.Entitlement)
	for _, id := range userIDs {
		if row, ok := s.rows[id]; ok {
			clone := *row
			out[id] = &clone
		}
	}
	return out, nil
}

func (s *stubEntitlementsRepo) ListPaidActive(context.Context) ([]models.Entitlement, error) {
	var out []models.Entitlement
	for _, row := range s.rows {
		if row.Tier.IsPaid() && row.Status == enums.EntitlementStatusActive {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *stubEntitlementsRepo) SetEntitlement(_ context.Context, userID uuid.UUID, tier enums.EntitlementTier, planKey string) error {
	if s.failUsers[userID] {
		return fmt.Errorf("store unavailable")
	}
	s.rows[userID] = &models.Entitlement{
		UserID:  userID,
		Tier:    tier,
		PlanKey: &planKey,
		Status:  enums.EntitlementStatusActive,
	}
	return nil
}

func (s *stubEntitlementsRepo) SetFree(_ context.Context, userID uuid.UUID) error {
	if s.failUsers[userID] {
		return fmt.Errorf("store unavailable")
	}
	s.rows[userID] = &models.Entitlement{
		UserID: userID,
		Tier:   enums.TierFree,
		Status: enums.EntitlementStatusNone,
	}
	return nil
}

func (s *stubEntitlementsRepo) AppendCorrection(_ context.Context, correction *models.EntitlementCorrection) (bool, error) {
	if _, ok := s.corrections[correction.ID]; ok {
		return false, nil
	}
	s.corrections[correction.ID] = *correction
	return true, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, eventsRepo *stubEventsRepo, entRepo *stubEntitlementsRepo, now time.Time) *Service {
	t.Helper()

	applier, err := NewApplier(ApplierParams{
		Logger:            testLogger(),
		TransactionRunner: stubTxRunner{},
		Entitlements:      entRepo,
	})
	require.NoError(t, err)

	service, err := NewService(ServiceParams{
		Logger:       testLogger(),
		Events:       eventsRepo,
		Entitlements: entRepo,
		Applier:      applier,
		Lookback:     90 * 24 * time.Hour,
		Now:          func() time.Time { return now },
	})
	require.NoError(t, err)
	return service
}

func userEvent(id string, userID *uuid.UUID, eventType enums.BillingEventType, planKey string, occurredAt time.Time) models.BillingEvent {
	event := models.BillingEvent{
		ID:         id,
		Provider:   enums.ProviderStripe,
		Type:       eventType,
		OccurredAt: occurredAt,
		UserID:     userID,
	}
	if planKey != "" {
		event.PlanKey = &planKey
	}
	return event
}

func TestRunGrantsFromEventHistory(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	userID := uuid.New()
	eventsRepo := &stubEventsRepo{events: []models.BillingEvent{
		userEvent("evt_sub", &userID, enums.EventSubscriptionCreated, "pro_monthly", now.Add(-24*time.Hour)),
	}}
	entRepo := newStubEntitlementsRepo()
	service := newTestService(t, eventsRepo, entRepo, now)

	summary, err := service.Run(context.Background(), RunParams{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.UsersSeen)
	require.Len(t, summary.Actions, 1)
	assert.Equal(t, enums.ActionGrant, summary.Actions[0].Kind)
	assert.Equal(t, 1, summary.Applied)
	assert.Zero(t, summary.Failed)

	row := entRepo.rows[userID]
	require.NotNil(t, row)
	assert.Equal(t, enums.TierPro, row.Tier)
	assert.Len(t, entRepo.corrections, 1)
}

func TestRunDryRunAppliesNothing(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	userID := uuid.New()
	eventsRepo := &stubEventsRepo{events: []models.BillingEvent{
		userEvent("evt_sub", &userID, enums.EventSubscriptionCreated, "vip_yearly", now.Add(-time.Hour)),
	}}
	entRepo := newStubEntitlementsRepo()
	service := newTestService(t, eventsRepo, entRepo, now)

	summary, err := service.Run(context.Background(), RunParams{DryRun: true})
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	require.Len(t, summary.Actions, 1)
	assert.Zero(t, summary.Applied)
	assert.Empty(t, entRepo.rows)
	assert.Empty(t, entRepo.corrections)
}

func TestRunSkipsEventsWithoutUser(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	eventsRepo := &stubEventsRepo{events: []models.BillingEvent{
		userEvent("evt_orphaned", nil, enums.EventPaymentSucceeded, "pro_monthly", now.Add(-time.Hour)),
	}}
	entRepo := newStubEntitlementsRepo()
	service := newTestService(t, eventsRepo, entRepo, now)

	summary, err := service.Run(context.Background(), RunParams{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SkippedNoUser)
	assert.Zero(t, summary.UsersSeen)
	assert.Empty(t, summary.Actions)
}

func TestRunLimitUsersCapsBatch(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	eventsRepo := &stubEventsRepo{}
	for i := 0; i < 5; i++ {
		userID := uuid.New()
		eventsRepo.events = append(eventsRepo.events,
			userEvent(fmt.Sprintf("evt_%d", i), &userID, enums.EventSubscriptionCreated, "pro_monthly", now.Add(-time.Hour)))
	}
	entRepo := newStubEntitlementsRepo()
	service := newTestService(t, eventsRepo, entRepo, now)

	summary, err := service.Run(context.Background(), RunParams{LimitUsers: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.UsersSeen)
	assert.Equal(t, 2, summary.Applied)
}

func TestRunIsolatesPerUserFailures(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	healthy := uuid.New()
	broken := uuid.New()
	eventsRepo := &stubEventsRepo{events: []models.BillingEvent{
		userEvent("evt_a", &healthy, enums.EventSubscriptionCreated, "pro_monthly", now.Add(-time.Hour)),
		userEvent("evt_b", &broken, enums.EventSubscriptionCreated, "vip_yearly", now.Add(-time.Hour)),
	}}
	entRepo := newStubEntitlementsRepo()
	entRepo.failUsers[broken] = true
	service := newTestService(t, eventsRepo, entRepo, now)

	summary, err := service.Run(context.Background(), RunParams{})
	require.Error(t, err, "aggregate error should surface the failed user")

	assert.Equal(t, 2, summary.UsersSeen)
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 1, summary.Failed)
	require.NotNil(t, entRepo.rows[healthy])
	assert.Equal(t, enums.TierPro, entRepo.rows[healthy].Tier)
	assert.Nil(t, entRepo.rows[broken])
}

func TestRunDowngradesOrphanedEntitlements(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	orphan := uuid.New()
	planKey := "vip_yearly"
	entRepo := newStubEntitlementsRepo()
	entRepo.rows[orphan] = &models.Entitlement{
		UserID:  orphan,
		Tier:    enums.TierVIP,
		PlanKey: &planKey,
		Status:  enums.EntitlementStatusActive,
	}
	service := newTestService(t, &stubEventsRepo{}, entRepo, now)

	summary, err := service.Run(context.Background(), RunParams{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Orphans)
	require.Len(t, summary.Actions, 1)
	assert.Equal(t, enums.ActionDowngrade, summary.Actions[0].Kind)
	assert.Equal(t, orphan, summary.Actions[0].UserID)
	assert.Equal(t, enums.TierFree, entRepo.rows[orphan].Tier)
}

func TestRunOrphanPassSkipsUsersAlreadyDiffed(t *testing.T) {
	// A paid user whose only events are cancellations is downgraded by the
	// diff pass; the orphan pass must not emit a second action for them.
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	userID := uuid.New()
	planKey := "pro_monthly"
	eventsRepo := &stubEventsRepo{events: []models.BillingEvent{
		userEvent("evt_cancel", &userID, enums.EventSubscriptionCanceled, "", now.Add(-time.Hour)),
	}}
	entRepo := newStubEntitlementsRepo()
	entRepo.rows[userID] = &models.Entitlement{
		UserID:  userID,
		Tier:    enums.TierPro,
		PlanKey: &planKey,
		Status:  enums.EntitlementStatusActive,
	}
	service := newTestService(t, eventsRepo, entRepo, now)

	summary, err := service.Run(context.Background(), RunParams{})
	require.NoError(t, err)

	require.Len(t, summary.Actions, 1)
	assert.Equal(t, enums.ActionDowngrade, summary.Actions[0].Kind)
	assert.Zero(t, summary.Orphans)
	assert.Equal(t, enums.TierFree, entRepo.rows[userID].Tier)
}

func TestRunTwiceConvergesWithoutNewCorrections(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	userID := uuid.New()
	eventsRepo := &stubEventsRepo{events: []models.BillingEvent{
		userEvent("evt_sub", &userID, enums.EventSubscriptionCreated, "pro_monthly", now.Add(-time.Hour)),
	}}
	entRepo := newStubEntitlementsRepo()
	service := newTestService(t, eventsRepo, entRepo, now)

	_, err := service.Run(context.Background(), RunParams{})
	require.NoError(t, err)

	second, err := service.Run(context.Background(), RunParams{})
	require.NoError(t, err)

	// The store already matches, so the second run decides nothing.
	assert.Empty(t, second.Actions)
	assert.Zero(t, second.Applied)
	assert.Len(t, entRepo.corrections, 1)
}

func TestRunHonorsExplicitSince(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	userID := uuid.New()
	eventsRepo := &stubEventsRepo{events: []models.BillingEvent{
		userEvent("evt_old", &userID, enums.EventSubscriptionCreated, "pro_monthly", now.Add(-48*time.Hour)),
	}}
	entRepo := newStubEntitlementsRepo()
	service := newTestService(t, eventsRepo, entRepo, now)

	since := now.Add(-24 * time.Hour)
	summary, err := service.Run(context.Background(), RunParams{Since: &since})
	require.NoError(t, err)

	assert.Equal(t, since, summary.Since)
	assert.Zero(t, summary.UsersSeen)
	assert.Empty(t, summary.Actions)
}
