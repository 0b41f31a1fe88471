package entitlements

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orato-ai/orato-backend/pkg/db/models"
	"github.com/orato-ai/orato-backend/pkg/enums"
)

func setupEntitlementsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	entitlements := `
CREATE TABLE IF NOT EXISTS entitlements (
  user_id TEXT PRIMARY KEY,
  tier TEXT NOT NULL DEFAULT 'free',
  plan_key TEXT,
  status TEXT NOT NULL DEFAULT 'none',
  created_at DATETIME,
  updated_at DATETIME
);`
	corrections := `
CREATE TABLE IF NOT EXISTS entitlement_corrections (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  action_kind TEXT NOT NULL,
  reason TEXT NOT NULL,
  "before" TEXT,
  "after" TEXT,
  related_event_id TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(entitlements).Error)
	require.NoError(t, db.Exec(corrections).Error)
	require.NoError(t, db.Exec("DELETE FROM entitlements").Error)
	require.NoError(t, db.Exec("DELETE FROM entitlement_corrections").Error)
	return db
}

func TestSetEntitlementUpsertsAndConverges(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.SetEntitlement(ctx, userID, enums.TierPro, "pro_monthly"))
	require.NoError(t, repo.SetEntitlement(ctx, userID, enums.TierVIP, "vip_yearly"))

	row, err := repo.Find(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, enums.TierVIP, row.Tier)
	require.NotNil(t, row.PlanKey)
	assert.Equal(t, "vip_yearly", *row.PlanKey)
	assert.Equal(t, enums.EntitlementStatusActive, row.Status)

	var count int64
	require.NoError(t, db.Model(&models.Entitlement{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSetEntitlementRejectsFreeTierAndEmptyPlan(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	assert.Error(t, repo.SetEntitlement(ctx, uuid.New(), enums.TierFree, "pro_monthly"))
	assert.Error(t, repo.SetEntitlement(ctx, uuid.New(), enums.TierPro, ""))
}

func TestSetFreeClearsPlanAndStatus(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.SetEntitlement(ctx, userID, enums.TierPro, "pro_monthly"))
	require.NoError(t, repo.SetFree(ctx, userID))

	row, err := repo.Find(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, enums.TierFree, row.Tier)
	assert.Nil(t, row.PlanKey)
	assert.Equal(t, enums.EntitlementStatusNone, row.Status)
}

func TestSetFreeCreatesRowWhenMissing(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.SetFree(ctx, userID))

	row, err := repo.Find(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, enums.TierFree, row.Tier)
}

func TestFindReturnsNilWhenAbsent(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	repo := NewRepository(db)

	row, err := repo.Find(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestGetByUserIDsOmitsMissingUsers(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	present := uuid.New()
	absent := uuid.New()
	require.NoError(t, repo.SetEntitlement(ctx, present, enums.TierPro, "pro_monthly"))

	rows, err := repo.GetByUserIDs(ctx, []uuid.UUID{present, absent})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[present])
	assert.Equal(t, enums.TierPro, rows[present].Tier)
	assert.Nil(t, rows[absent])
}

func TestListPaidActiveExcludesFreeAndCanceled(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	paid := uuid.New()
	free := uuid.New()
	require.NoError(t, repo.SetEntitlement(ctx, paid, enums.TierVIP, "vip_yearly"))
	require.NoError(t, repo.SetFree(ctx, free))

	rows, err := repo.ListPaidActive(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, paid, rows[0].UserID)
}

func TestAppendCorrectionAbsorbsDuplicateIDs(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	correction := &models.EntitlementCorrection{
		ID:         "grant:" + userID.String() + ":pro_monthly",
		UserID:     userID,
		ActionKind: enums.ActionGrant,
		Reason:     "events show active pro_monthly subscription",
	}

	inserted, err := repo.AppendCorrection(ctx, correction)
	require.NoError(t, err)
	assert.True(t, inserted)

	again, err := repo.AppendCorrection(ctx, &models.EntitlementCorrection{
		ID:         correction.ID,
		UserID:     userID,
		ActionKind: enums.ActionGrant,
		Reason:     "events show active pro_monthly subscription",
	})
	require.NoError(t, err)
	assert.False(t, again, "duplicate correction id should be a no-op")

	var count int64
	require.NoError(t, db.Model(&models.EntitlementCorrection{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAppendCorrectionRequiresID(t *testing.T) {
	db := setupEntitlementsTestDB(t)
	repo := NewRepository(db)

	_, err := repo.AppendCorrection(context.Background(), &models.EntitlementCorrection{UserID: uuid.New()})
	assert.Error(t, err)
}
