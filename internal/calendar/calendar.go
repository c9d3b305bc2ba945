// Package calendar answers working-day questions against the jurisdiction's
// bank-holiday list. Every date computation in the licence engine that walks
// the calendar goes through here so weekends and holidays are counted one way.
package calendar

import (
	"context"
	"time"

	dErrors "cvl/pkg/domain-errors"
)

// Source supplies the bank-holiday list for the jurisdiction. Implementations
// must fail loudly when the list cannot be obtained: a missing list means no
// date computation can be trusted, never "assume working day".
type Source interface {
	BankHolidays(ctx context.Context) ([]time.Time, error)
}

// WorkingDays performs calendar-aware date arithmetic.
type WorkingDays struct {
	source Source
}

func New(source Source) *WorkingDays {
	return &WorkingDays{source: source}
}

// dayKey normalizes a date to its calendar day, ignoring time of day and zone offset.
func dayKey(t time.Time) string { return t.Format(time.DateOnly) }

func (w *WorkingDays) holidaySet(ctx context.Context) (map[string]struct{}, error) {
	holidays, err := w.source.BankHolidays(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "bank holiday list unavailable")
	}
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		set[dayKey(h)] = struct{}{}
	}
	return set, nil
}

// IsNonWorkingDay reports whether the date is a Saturday, Sunday or bank holiday.
func (w *WorkingDays) IsNonWorkingDay(ctx context.Context, date time.Time) (bool, error) {
	set, err := w.holidaySet(ctx)
	if err != nil {
		return false, err
	}
	return isNonWorking(set, date), nil
}

// LastWorkingDay returns the date itself when it is a working day, otherwise
// the closest earlier working day.
func (w *WorkingDays) LastWorkingDay(ctx context.Context, date time.Time) (time.Time, error) {
	set, err := w.holidaySet(ctx)
	if err != nil {
		return time.Time{}, err
	}
	for isNonWorking(set, date) {
		date = date.AddDate(0, 0, -1)
	}
	return date, nil
}

// NextWorkingDay returns the date itself when it is a working day, otherwise
// the closest later working day.
func (w *WorkingDays) NextWorkingDay(ctx context.Context, date time.Time) (time.Time, error) {
	set, err := w.holidaySet(ctx)
	if err != nil {
		return time.Time{}, err
	}
	for isNonWorking(set, date) {
		date = date.AddDate(0, 0, 1)
	}
	return date, nil
}

// SubtractWorkingDays walks n working days backward from the date. The
// starting date itself does not count.
func (w *WorkingDays) SubtractWorkingDays(ctx context.Context, date time.Time, n int) (time.Time, error) {
	set, err := w.holidaySet(ctx)
	if err != nil {
		return time.Time{}, err
	}
	for i := 0; i < n; i++ {
		date = date.AddDate(0, 0, -1)
		for isNonWorking(set, date) {
			date = date.AddDate(0, 0, -1)
		}
	}
	return date, nil
}

// AddWorkingDays walks n working days forward from the date. The starting
// date itself does not count.
func (w *WorkingDays) AddWorkingDays(ctx context.Context, date time.Time, n int) (time.Time, error) {
	set, err := w.holidaySet(ctx)
	if err != nil {
		return time.Time{}, err
	}
	for i := 0; i < n; i++ {
		date = date.AddDate(0, 0, 1)
		for isNonWorking(set, date) {
			date = date.AddDate(0, 0, 1)
		}
	}
	return date, nil
}

// IsWithinWorkingDays reports whether target falls between from (inclusive)
// and the n-th working day after from (inclusive). Weekends and holidays in
// between do not count toward n.
func (w *WorkingDays) IsWithinWorkingDays(ctx context.Context, from, target time.Time, n int) (bool, error) {
	if target.Before(startOfDay(from)) {
		return false, nil
	}
	boundary, err := w.AddWorkingDays(ctx, from, n)
	if err != nil {
		return false, err
	}
	return !startOfDay(target).After(startOfDay(boundary)), nil
}

func isNonWorking(holidays map[string]struct{}, date time.Time) bool {
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return true
	}
	_, holiday := holidays[dayKey(date)]
	return holiday
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
