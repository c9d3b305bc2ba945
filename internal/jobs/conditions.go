package jobs

import (
	"context"
	"fmt"
	"time"

	"cvl/internal/licence/models"
	"cvl/pkg/domain"
	"cvl/pkg/requestcontext"
)

// RemoveExpiredConditions strips AP-period additional and bespoke conditions
// from variation licences that are in their PSS-only period: the AP period
// has ended, so those conditions no longer apply. Standard and PSS
// conditions are retained.
func (r *Runner) RemoveExpiredConditions(ctx context.Context) (Summary, error) {
	return r.run(ctx, "remove-expired-conditions", func(ctx context.Context, today time.Time) (Summary, error) {
		candidates, err := r.store.FindByStatusIn(ctx,
			models.StatusVariationInProgress,
			models.StatusVariationSubmitted,
			models.StatusVariationRejected,
			models.StatusVariationApproved,
		)
		if err != nil {
			return Summary{}, err
		}

		var due []*models.Licence
		for _, licence := range candidates {
			if licence.InPSSPeriod(today) && hasRemovable(licence) {
				due = append(due, licence)
			}
		}

		summary := r.processEach(ctx, "remove-expired-conditions", due, func(ctx context.Context, licence *models.Licence) error {
			return r.removeConditions(ctx, licence.ID, today)
		})
		return summary, nil
	})
}

func (r *Runner) removeConditions(ctx context.Context, id domain.LicenceID, today time.Time) error {
	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		licence, err := r.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !licence.InPSSPeriod(today) || !licence.Status.IsVariation() {
			return fmt.Errorf("%w: licence %s no longer in PSS variation state", errSkip, id)
		}
		if !hasRemovable(licence) {
			return fmt.Errorf("%w: no removable conditions left", errSkip)
		}

		kept := licence.Conditions[:0]
		for _, condition := range licence.Conditions {
			if !condition.Removable() {
				kept = append(kept, condition)
			}
		}
		licence.Conditions = kept
		licence.UpdatedBy = domain.System.Username
		licence.UpdatedAt = requestcontext.Now(ctx)
		return r.store.UpdateIfStatus(ctx, licence, licence.Status)
	})
}

func hasRemovable(licence *models.Licence) bool {
	for _, condition := range licence.Conditions {
		if condition.Removable() {
			return true
		}
	}
	return false
}
