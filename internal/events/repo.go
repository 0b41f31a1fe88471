package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orato-ai/orato-backend/pkg/db/models"
	"github.com/orato-ai/orato-backend/pkg/enums"
)

// Repository exposes the billing event persistence surface. Events are
// append-only; ingestion is idempotent on the provider-assigned id.
type Repository interface {
	Insert(ctx context.Context, event *models.BillingEvent) (bool, error)
	ListSince(ctx context.Context, since time.Time) ([]models.BillingEvent, error)
	ListSupportedUserIDs(ctx context.Context, since time.Time) ([]uuid.UUID, error)
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

// Insert appends a normalized billing event. Duplicate provider ids are
// absorbed silently; the return value reports whether a row was written.
func (r *repository) Insert(ctx context.Context, event *models.BillingEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListSince returns every event whose occurrence timestamp is at or after
// the checkpoint. Ordering is not guaranteed; callers re-sort per user.
func (r *repository) ListSince(ctx context.Context, since time.Time) ([]models.BillingEvent, error) {
	var rows []models.BillingEvent
	err := r.db.WithContext(ctx).
		Where("occurred_at >= ?", since).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListSupportedUserIDs returns the distinct users that have at least one
// entitlement-supporting event in the window. Used by orphan detection.
func (r *repository) ListSupportedUserIDs(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.BillingEvent{}).
		Distinct("user_id").
		Where("occurred_at >= ?", since).
		Where("type IN ?", enums.SupportingBillingEventTypes()).
		Where("user_id IS NOT NULL").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
