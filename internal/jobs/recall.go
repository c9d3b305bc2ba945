package jobs

import (
	"context"
	"time"

	"cvl/internal/licence/models"
)

// InactivateRecallLicences inactivates active licences, and their in-flight
// variations, for people who have been recalled: a post-recall release date
// that is today or in the future means the licence on the street is void and
// a fresh PRRD licence will be worked up instead.
func (r *Runner) InactivateRecallLicences(ctx context.Context) (Summary, error) {
	return r.run(ctx, "inactivate-recall-licences", func(ctx context.Context, today time.Time) (Summary, error) {
		candidates, err := r.store.FindByStatusIn(ctx,
			models.StatusActive,
			models.StatusVariationInProgress,
			models.StatusVariationSubmitted,
			models.StatusVariationRejected,
			models.StatusVariationApproved,
		)
		if err != nil {
			return Summary{}, err
		}
		if len(candidates) == 0 {
			return Summary{}, nil
		}

		records, err := r.freshRecords(ctx, candidates)
		if err != nil {
			return Summary{}, err
		}

		var due []*models.Licence
		for _, licence := range candidates {
			record := records[licence.NomisID]
			if record == nil {
				continue
			}
			prrd := record.SentenceDates.PostRecallReleaseDate
			if prrd != nil && !prrd.Before(today) {
				due = append(due, licence)
			}
		}

		summary := r.processEach(ctx, "inactivate-recall-licences", due, func(ctx context.Context, licence *models.Licence) error {
			prior := licence.Status
			return r.transition(ctx, licence.ID, models.StatusInactive, statusIs(prior), nil)
		})
		return summary, nil
	})
}
