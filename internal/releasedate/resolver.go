// Package releasedate derives the canonical licence start date, the
// hard-stop window and the licence type from sentence dates. The functions
// here are deterministic: same dates in, same answer out, so jobs and
// caseload reads can recompute freely.
package releasedate

import (
	"context"
	"time"

	"cvl/internal/calendar"
	"cvl/internal/licence/models"
)

// SentenceDates carries the upstream dates a resolution needs. All fields are
// optional; presence varies by kind.
type SentenceDates struct {
	ConditionalReleaseDate        *time.Time
	ActualReleaseDate             *time.Time
	PostRecallReleaseDate         *time.Time
	LicenceExpiryDate             *time.Time
	TopupSupervisionExpiryDate    *time.Time
	HomeDetentionCurfewActualDate *time.Time
}

// ResolveKind decides between a post-recall and a standard conditional
// release. PRRD wins only when it is today-or-future and strictly later than
// CRD (or CRD is absent); on a tie CRD wins.
func ResolveKind(dates SentenceDates, today time.Time) models.LicenceKind {
	prrd := dates.PostRecallReleaseDate
	crd := dates.ConditionalReleaseDate
	if prrd != nil && !prrd.Before(today) && (crd == nil || prrd.After(*crd)) {
		return models.KindPRRD
	}
	return models.KindCRD
}

// StartDate computes the canonical licence start date for a kind.
// For standard release the actual release date, once known, supersedes the
// conditional one. Returns nil when the kind's governing date is absent.
func StartDate(kind models.LicenceKind, dates SentenceDates) *time.Time {
	switch kind {
	case models.KindPRRD:
		return dates.PostRecallReleaseDate
	case models.KindHDC:
		return dates.HomeDetentionCurfewActualDate
	default:
		if dates.ActualReleaseDate != nil {
			return dates.ActualReleaseDate
		}
		return dates.ConditionalReleaseDate
	}
}

// LicenceType classifies the supervision content from LED and TUSED.
// The tie TUSED == LED resolves to AP: the comparison is strictly greater-than.
func LicenceType(led, tused *time.Time) models.LicenceType {
	switch {
	case led == nil && tused == nil:
		return models.TypeAP
	case led == nil:
		return models.TypePSS
	case tused == nil:
		return models.TypeAP
	case tused.After(*led):
		return models.TypeAPPSS
	default:
		return models.TypeAP
	}
}

// Resolver adds the calendar-aware computations: hard-stop window, the
// two-working-day release lookahead and the recall PSS degeneration. The
// working-day offsets are injected configuration, not domain constants.
type Resolver struct {
	workingDays      *calendar.WorkingDays
	hardStopDays     int
	hardStopWarnDays int
}

func NewResolver(workingDays *calendar.WorkingDays, hardStopDays, hardStopWarnDays int) *Resolver {
	return &Resolver{
		workingDays:      workingDays,
		hardStopDays:     hardStopDays,
		hardStopWarnDays: hardStopWarnDays,
	}
}

// HardStopDates returns the hard-stop date and the warning date, both counted
// backward from the licence start date in working days.
func (r *Resolver) HardStopDates(ctx context.Context, startDate time.Time) (hardStop, warning time.Time, err error) {
	hardStop, err = r.workingDays.SubtractWorkingDays(ctx, startDate, r.hardStopDays)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	warning, err = r.workingDays.SubtractWorkingDays(ctx, hardStop, r.hardStopWarnDays)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return hardStop, warning, nil
}

// IsInHardStopPeriod reports whether today is on or after the hard-stop date
// and strictly before the licence start date.
func IsInHardStopPeriod(today, hardStop, startDate time.Time) bool {
	return !today.Before(hardStop) && today.Before(startDate)
}

// IsDueToBeReleasedInTheNextTwoWorkingDays walks the calendar forward from
// today; weekends and holidays do not count toward the two days.
func (r *Resolver) IsDueToBeReleasedInTheNextTwoWorkingDays(ctx context.Context, today time.Time, startDate *time.Time) (bool, error) {
	if startDate == nil {
		return false, nil
	}
	return r.workingDays.IsWithinWorkingDays(ctx, today, *startDate, 2)
}

// RecallLicenceType applies the PSS degeneration for recall cases: a
// nominally AP_PSS licence whose start date lands on the licence expiry date,
// or on the last working day before a non-working-day LED, has no AP period
// left to supervise.
func (r *Resolver) RecallLicenceType(ctx context.Context, dates SentenceDates, startDate time.Time) (models.LicenceType, error) {
	typeCode := LicenceType(dates.LicenceExpiryDate, dates.TopupSupervisionExpiryDate)
	if typeCode != models.TypeAPPSS || dates.LicenceExpiryDate == nil {
		return typeCode, nil
	}
	led := *dates.LicenceExpiryDate
	if startDate.Equal(led) {
		return models.TypePSS, nil
	}
	nonWorking, err := r.workingDays.IsNonWorkingDay(ctx, led)
	if err != nil {
		return "", err
	}
	if nonWorking {
		lastWorking, err := r.workingDays.LastWorkingDay(ctx, led)
		if err != nil {
			return "", err
		}
		if startDate.Equal(lastWorking) {
			return models.TypePSS, nil
		}
	}
	return typeCode, nil
}
