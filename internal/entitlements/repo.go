package entitlements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orato-ai/orato-backend/pkg/db/models"
	"github.com/orato-ai/orato-backend/pkg/enums"
)

// Repository exposes the entitlement store surface the reconciliation
// engine mutates. All writes are idempotent: upserts converge on the same
// row and correction appends absorb duplicate ids.
type Repository interface {
	Find(ctx context.Context, userID uuid.UUID) (*models.Entitlement, error)
	GetByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.Entitlement, error)
	ListPaidActive(ctx context.Context) ([]models.Entitlement, error)
	SetEntitlement(ctx context.Context, userID uuid.UUID, tier enums.EntitlementTier, planKey string) error
	SetFree(ctx context.Context, userID uuid.UUID) error
	AppendCorrection(ctx context.Context, correction *models.EntitlementCorrection) (bool, error)
	WithTx(tx *gorm.DB) Repository
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Find returns the entitlement row for a user, or nil when none exists.
func (r *repository) Find(ctx context.Context, userID uuid.UUID) (*models.Entitlement, error) {
	var row models.Entitlement
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetByUserIDs returns entitlements keyed by user. Users without a row are
// simply absent from the map.
func (r *repository) GetByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.Entitlement, error) {
	out := make(map[uuid.UUID]*models.Entitlement, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []models.Entitlement
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].UserID] = &rows[i]
	}
	return out, nil
}

// ListPaidActive returns every entitlement currently claiming a paid tier
// with active status. This is the orphan-detection candidate set.
func (r *repository) ListPaidActive(ctx context.Context) ([]models.Entitlement, error) {
	var rows []models.Entitlement
	err := r.db.WithContext(ctx).
		Where("tier <> ? AND status = ?", enums.TierFree, enums.EntitlementStatusActive).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SetEntitlement upserts a paid entitlement for the user. Re-applying the
// same grant converges on the same row.
func (r *repository) SetEntitlement(ctx context.Context, userID uuid.UUID, tier enums.EntitlementTier, planKey string) error {
	if !tier.IsValid() || tier == enums.TierFree {
		return fmt.Errorf("invalid paid tier %q", tier)
	}
	if planKey == "" {
		return fmt.Errorf("plan key required for paid entitlement")
	}

	row := &models.Entitlement{
		UserID:  userID,
		Tier:    tier,
		PlanKey: &planKey,
		Status:  enums.EntitlementStatusActive,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"tier":       tier,
				"plan_key":   planKey,
				"status":     enums.EntitlementStatusActive,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(row).Error
}

// SetFree upserts the user back to the free tier with no plan.
func (r *repository) SetFree(ctx context.Context, userID uuid.UUID) error {
	row := &models.Entitlement{
		UserID: userID,
		Tier:   enums.TierFree,
		Status: enums.EntitlementStatusNone,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"tier":       enums.TierFree,
				"plan_key":   gorm.Expr("NULL"),
				"status":     enums.EntitlementStatusNone,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(row).Error
}

// AppendCorrection writes an audit correction. A duplicate correction id is
// a successful no-op; the return value reports whether a row was written.
func (r *repository) AppendCorrection(ctx context.Context, correction *models.EntitlementCorrection) (bool, error) {
	if correction == nil || correction.ID == "" {
		return false, fmt.Errorf("correction id required")
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(correction)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
