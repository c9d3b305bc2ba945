package jobs

import (
	"context"
	"time"

	"cvl/internal/licence/models"
)

// ExpireLicences inactivates active licences whose supervision has ended:
// today is strictly after TUSED when present, otherwise strictly after LED.
// No event: downstream consumers care about releases and recalls, not
// natural expiry.
func (r *Runner) ExpireLicences(ctx context.Context) (Summary, error) {
	return r.run(ctx, "expire-licences", func(ctx context.Context, today time.Time) (Summary, error) {
		candidates, err := r.store.FindByStatusIn(ctx, models.StatusActive)
		if err != nil {
			return Summary{}, err
		}

		var due []*models.Licence
		for _, licence := range candidates {
			expiry := licence.ExpiryDate()
			if expiry != nil && today.After(*expiry) {
				due = append(due, licence)
			}
		}

		summary := r.processEach(ctx, "expire-licences", due, func(ctx context.Context, licence *models.Licence) error {
			return r.transition(ctx, licence.ID, models.StatusInactive, statusIs(models.StatusActive), nil)
		})
		return summary, nil
	})
}
