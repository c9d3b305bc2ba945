package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cvl/internal/licence/models"
	"cvl/internal/releasedate"
	"cvl/pkg/domain"
	"cvl/pkg/platform/sentinel"
	"cvl/pkg/requestcontext"
)

const defaultRecalculateBatchSize = 100

// RecalculateLicenceStartDates re-derives the licence start date for one
// batch of licences from fresh prison data. The scan pages by id descending:
// the caller passes the cursor returned by the previous call (zero starts
// from the top) and re-invokes until the returned cursor is zero, so the
// whole population is covered incrementally rather than in one unbounded
// transaction.
func (r *Runner) RecalculateLicenceStartDates(ctx context.Context, batchSize int, cursor domain.LicenceID) (domain.LicenceID, Summary, error) {
	if batchSize <= 0 {
		batchSize = defaultRecalculateBatchSize
	}

	var next domain.LicenceID
	summary, err := r.run(ctx, "recalculate-licence-start-dates", func(ctx context.Context, today time.Time) (Summary, error) {
		ids, err := r.store.ListIDsBefore(ctx, cursor, batchSize)
		if err != nil {
			return Summary{}, err
		}
		if len(ids) == 0 {
			return Summary{}, nil
		}
		next = ids[len(ids)-1]

		licences := make([]*models.Licence, 0, len(ids))
		for _, id := range ids {
			licence, err := r.store.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					continue
				}
				return Summary{}, err
			}
			if licence.Status.IsTerminal() {
				continue
			}
			licences = append(licences, licence)
		}
		if len(licences) == 0 {
			return Summary{}, nil
		}

		prisoners, err := r.search.FindByNomisIDs(ctx, nomisIDsOf(licences))
		if err != nil {
			return Summary{}, fmt.Errorf("prisoner search: %w", err)
		}
		dates := make(map[domain.NomisID]releasedate.SentenceDates, len(prisoners))
		for _, p := range prisoners {
			dates[p.NomisID] = releasedate.SentenceDates{
				ConditionalReleaseDate:        p.ConditionalReleaseDate,
				ActualReleaseDate:             p.ConfirmedReleaseDate,
				PostRecallReleaseDate:         p.PostRecallReleaseDate,
				LicenceExpiryDate:             p.LicenceExpiryDate,
				TopupSupervisionExpiryDate:    p.TopupSupervisionExpiryDate,
				HomeDetentionCurfewActualDate: p.HomeDetentionCurfewActualDate,
			}
		}

		summary := r.processEach(ctx, "recalculate-licence-start-dates", licences, func(ctx context.Context, licence *models.Licence) error {
			fresh, ok := dates[licence.NomisID]
			if !ok {
				return fmt.Errorf("%w: no prisoner record for %s", errSkip, licence.NomisID)
			}
			return r.recalculateOne(ctx, licence.ID, fresh)
		})
		return summary, nil
	})
	return next, summary, err
}

func (r *Runner) recalculateOne(ctx context.Context, id domain.LicenceID, fresh releasedate.SentenceDates) error {
	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		licence, err := r.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if licence.Status.IsTerminal() {
			return fmt.Errorf("%w: status is %s", errSkip, licence.Status)
		}

		newStart := releasedate.StartDate(licence.Kind, fresh)
		if datesEqual(licence.LicenceStartDate, newStart) {
			return fmt.Errorf("%w: start date unchanged", errSkip)
		}

		licence.ConditionalReleaseDate = fresh.ConditionalReleaseDate
		licence.ActualReleaseDate = fresh.ActualReleaseDate
		licence.PostRecallReleaseDate = fresh.PostRecallReleaseDate
		licence.LicenceExpiryDate = fresh.LicenceExpiryDate
		licence.TopupSupervisionExpiryDate = fresh.TopupSupervisionExpiryDate
		licence.HomeDetentionCurfewActualDate = fresh.HomeDetentionCurfewActualDate
		licence.LicenceStartDate = newStart
		licence.UpdatedBy = domain.System.Username
		licence.UpdatedAt = requestcontext.Now(ctx)

		if err := r.store.UpdateIfStatus(ctx, licence, licence.Status); err != nil {
			return err
		}
		return nil
	})
}

func nomisIDsOf(licences []*models.Licence) []domain.NomisID {
	seen := make(map[domain.NomisID]bool, len(licences))
	ids := make([]domain.NomisID, 0, len(licences))
	for _, l := range licences {
		if !seen[l.NomisID] {
			seen[l.NomisID] = true
			ids = append(ids, l.NomisID)
		}
	}
	return ids
}

func datesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
