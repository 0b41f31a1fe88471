package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orato-ai/orato-backend/pkg/enums"
)

// detectOrphans is the second reconciliation pass. It flags paid, active
// entitlements whose user has no supporting event anywhere in the lookback
// window. The per-user diff cannot see these because it only visits users
// that have events; orphans typically come from out-of-band grants that
// billing history no longer backs.
//
// Users in exclude were already decided by the diff pass this run and are
// skipped so the two passes never emit competing actions.
func (s *Service) detectOrphans(ctx context.Context, since time.Time, exclude map[uuid.UUID]struct{}) ([]Action, error) {
	paid, err := s.entitlements.ListPaidActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing paid entitlements: %w", err)
	}

	supportedIDs, err := s.events.ListSupportedUserIDs(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("listing supported users: %w", err)
	}
	supported := make(map[uuid.UUID]struct{}, len(supportedIDs))
	for _, id := range supportedIDs {
		supported[id] = struct{}{}
	}

	var actions []Action
	for _, row := range paid {
		if _, seen := exclude[row.UserID]; seen {
			continue
		}
		if _, ok := supported[row.UserID]; ok {
			continue
		}
		actions = append(actions, Action{
			Kind:   enums.ActionDowngrade,
			UserID: row.UserID,
			Tier:   enums.TierFree,
			Reason: fmt.Sprintf("paid tier %s has no supporting billing event since %s", row.Tier, since.Format(time.RFC3339)),
		})
	}
	return actions, nil
}
