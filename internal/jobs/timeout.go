package jobs

import (
	"context"
	"fmt"
	"time"

	"cvl/internal/events"
	"cvl/internal/licence/models"
)

// TimeOutLicences times out unapproved standard licences whose release falls
// within the next two working days: probation ran out of time and the prison
// takes over with a hard-stop licence. Only the CRD kind has a hard-stop
// deadline; HDC and PRRD releases never time out.
func (r *Runner) TimeOutLicences(ctx context.Context) (Summary, error) {
	return r.run(ctx, "time-out-licences", func(ctx context.Context, today time.Time) (Summary, error) {
		candidates, err := r.store.FindByStatusIn(ctx, models.StatusInProgress, models.StatusSubmitted)
		if err != nil {
			return Summary{}, err
		}

		var crd []*models.Licence
		for _, licence := range candidates {
			if licence.Kind == models.KindCRD {
				crd = append(crd, licence)
			}
		}
		if len(crd) == 0 {
			return Summary{}, nil
		}

		records, err := r.freshRecords(ctx, crd)
		if err != nil {
			return Summary{}, err
		}

		var due []*models.Licence
		for _, licence := range crd {
			record := records[licence.NomisID]
			if record != nil && record.IsDueToBeReleasedInTheNextTwoWorkingDays {
				due = append(due, licence)
			}
		}

		summary := r.processEach(ctx, "time-out-licences", due, func(ctx context.Context, licence *models.Licence) error {
			return r.transition(ctx, licence.ID, models.StatusTimedOut, notYetApproved,
				func(*models.Licence) events.EventType { return events.LicenceTimedOut })
		})
		return summary, nil
	})
}

// notYetApproved re-checks that approval has not landed since the listing.
// An approved licence is never timed out.
func notYetApproved(l *models.Licence) error {
	if !l.Status.InFlight() {
		return fmt.Errorf("%w: status is %s", errSkip, l.Status)
	}
	return nil
}
