package jobs

import (
	"context"
	"time"

	"cvl/internal/events"
	"cvl/internal/licence/models"
)

// DeactivateLicencesPastReleaseDate inactivates unapproved licences whose
// release day has already gone: the person walked out without an approved
// licence, so the in-flight row is dead.
func (r *Runner) DeactivateLicencesPastReleaseDate(ctx context.Context) (Summary, error) {
	return r.run(ctx, "deactivate-licences-past-release-date", func(ctx context.Context, today time.Time) (Summary, error) {
		candidates, err := r.store.FindByStatusIn(ctx, models.StatusInProgress, models.StatusSubmitted)
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
			start := licence.LicenceStartDate
			if record := records[licence.NomisID]; record != nil && record.LicenceStartDate != nil {
				start = record.LicenceStartDate
			}
			if start != nil && start.Before(today) {
				due = append(due, licence)
			}
		}

		summary := r.processEach(ctx, "deactivate-licences-past-release-date", due, func(ctx context.Context, licence *models.Licence) error {
			prior := licence.Status
			return r.transition(ctx, licence.ID, models.StatusInactive, statusIs(prior),
				func(l *models.Licence) events.EventType { return events.InactivatedEventFor(l.Kind) })
		})
		return summary, nil
	})
}

// DeactivateHDCLicences inactivates HDC licences whose curfew approval has
// since been rejected or lapsed and whose curfew release day is past.
func (r *Runner) DeactivateHDCLicences(ctx context.Context) (Summary, error) {
	return r.run(ctx, "deactivate-hdc-licences", func(ctx context.Context, today time.Time) (Summary, error) {
		candidates, err := r.store.FindByStatusIn(ctx, models.StatusApproved, models.StatusActive)
		if err != nil {
			return Summary{}, err
		}

		var hdc []*models.Licence
		for _, licence := range candidates {
			if licence.Kind == models.KindHDC {
				hdc = append(hdc, licence)
			}
		}
		if len(hdc) == 0 {
			return Summary{}, nil
		}

		curfewApproved, err := r.curfewApprovals(ctx, hdc)
		if err != nil {
			return Summary{}, err
		}
		records, err := r.freshRecords(ctx, hdc)
		if err != nil {
			return Summary{}, err
		}

		var due []*models.Licence
		for _, licence := range hdc {
			if curfewApproved[licence.BookingID] {
				continue
			}
			start := licence.HomeDetentionCurfewActualDate
			if record := records[licence.NomisID]; record != nil && record.SentenceDates.HomeDetentionCurfewActualDate != nil {
				start = record.SentenceDates.HomeDetentionCurfewActualDate
			}
			if start != nil && start.Before(today) {
				due = append(due, licence)
			}
		}

		summary := r.processEach(ctx, "deactivate-hdc-licences", due, func(ctx context.Context, licence *models.Licence) error {
			prior := licence.Status
			return r.transition(ctx, licence.ID, models.StatusInactive, statusIs(prior),
				func(*models.Licence) events.EventType { return events.HDCLicenceInactivated })
		})
		return summary, nil
	})
}
