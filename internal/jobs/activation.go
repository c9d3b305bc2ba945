package jobs

import (
	"context"
	"fmt"
	"time"

	"cvl/internal/events"
	"cvl/internal/licence/models"
	"cvl/pkg/domain"
)

// ActivateLicences activates approved licences whose start date is today.
// The inverse case rides along: an approved non-HDC licence whose person has
// since had home detention curfew approved is deactivated instead, because
// the HDC path supersedes the standard release.
func (r *Runner) ActivateLicences(ctx context.Context) (Summary, error) {
	return r.run(ctx, "activate-licences", func(ctx context.Context, today time.Time) (Summary, error) {
		candidates, err := r.store.FindByStatusIn(ctx, models.StatusApproved)
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
		curfewApproved, err := r.curfewApprovals(ctx, candidates)
		if err != nil {
			return Summary{}, err
		}

		var due []*models.Licence
		activate := make(map[domain.LicenceID]bool)
		for _, licence := range candidates {
			if licence.Kind != models.KindHDC && curfewApproved[licence.BookingID] {
				// Inverse: the HDC path has superseded this licence.
				due = append(due, licence)
				continue
			}
			record := records[licence.NomisID]
			if record == nil || record.LicenceStartDate == nil {
				continue
			}
			if record.LicenceStartDate.Equal(today) {
				due = append(due, licence)
				activate[licence.ID] = true
			}
		}

		summary := r.processEach(ctx, "activate-licences", due, func(ctx context.Context, licence *models.Licence) error {
			if activate[licence.ID] {
				return r.transition(ctx, licence.ID, models.StatusActive, statusIs(models.StatusApproved),
					func(l *models.Licence) events.EventType { return events.ActivatedEventFor(l.Kind) })
			}
			return r.transition(ctx, licence.ID, models.StatusInactive, statusIs(models.StatusApproved),
				func(*models.Licence) events.EventType { return events.LicenceInactivated })
		})
		return summary, nil
	})
}

func (r *Runner) curfewApprovals(ctx context.Context, licences []*models.Licence) (map[domain.BookingID]bool, error) {
	seen := make(map[domain.BookingID]bool, len(licences))
	var bookingIDs []domain.BookingID
	for _, l := range licences {
		if l.BookingID != 0 && !seen[l.BookingID] {
			seen[l.BookingID] = true
			bookingIDs = append(bookingIDs, l.BookingID)
		}
	}
	statuses, err := r.curfews.CurfewStatuses(ctx, bookingIDs)
	if err != nil {
		return nil, fmt.Errorf("curfew status fetch: %w", err)
	}
	approved := make(map[domain.BookingID]bool, len(statuses))
	for _, s := range statuses {
		approved[s.BookingID] = s.Approved()
	}
	return approved, nil
}
