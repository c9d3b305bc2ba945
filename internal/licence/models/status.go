package models

import dErrors "cvl/pkg/domain-errors"

// LicenceStatus is the closed set of lifecycle statuses.
//
// The main lifecycle runs NOT_STARTED → IN_PROGRESS → SUBMITTED → APPROVED →
// ACTIVE → {INACTIVE | RECALLED}. Once a licence is ACTIVE a variation row
// moves through VARIATION_IN_PROGRESS → VARIATION_SUBMITTED →
// {VARIATION_REJECTED | VARIATION_APPROVED}. TIMED_OUT is the escape hatch
// for unapproved licences whose hard deadline passed.
//
// NOT_STARTED is virtual: no licence row exists yet, the status is computed
// by caseload composers and never persisted.
type LicenceStatus string

const (
	StatusNotStarted          LicenceStatus = "NOT_STARTED"
	StatusInProgress          LicenceStatus = "IN_PROGRESS"
	StatusSubmitted           LicenceStatus = "SUBMITTED"
	StatusApproved            LicenceStatus = "APPROVED"
	StatusActive              LicenceStatus = "ACTIVE"
	StatusInactive            LicenceStatus = "INACTIVE"
	StatusRecalled            LicenceStatus = "RECALLED"
	StatusVariationInProgress LicenceStatus = "VARIATION_IN_PROGRESS"
	StatusVariationSubmitted  LicenceStatus = "VARIATION_SUBMITTED"
	StatusVariationRejected   LicenceStatus = "VARIATION_REJECTED"
	StatusVariationApproved   LicenceStatus = "VARIATION_APPROVED"
	StatusTimedOut            LicenceStatus = "TIMED_OUT"
)

// legalTransitions is the single source of truth for the state machine.
// NOT_STARTED has no entry: rows are created directly as IN_PROGRESS (or as
// VARIATION_IN_PROGRESS for variation rows).
var legalTransitions = map[LicenceStatus][]LicenceStatus{
	StatusInProgress:          {StatusSubmitted, StatusTimedOut, StatusInactive},
	StatusSubmitted:           {StatusApproved, StatusInProgress, StatusTimedOut, StatusInactive},
	StatusApproved:            {StatusActive, StatusInactive, StatusInProgress},
	StatusActive:              {StatusInactive, StatusRecalled},
	StatusVariationInProgress: {StatusVariationSubmitted, StatusInactive},
	StatusVariationSubmitted:  {StatusVariationApproved, StatusVariationRejected, StatusInactive},
	StatusVariationRejected:   {StatusVariationInProgress, StatusInactive},
	StatusVariationApproved:   {StatusActive, StatusInactive},
	// INACTIVE, RECALLED and TIMED_OUT are terminal.
}

// CanTransitionTo reports whether the state machine permits the move.
func (s LicenceStatus) CanTransitionTo(to LicenceStatus) bool {
	for _, next := range legalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsVariation reports whether the status belongs to the variation sub-lifecycle.
func (s LicenceStatus) IsVariation() bool {
	switch s {
	case StatusVariationInProgress, StatusVariationSubmitted, StatusVariationRejected, StatusVariationApproved:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is legal.
func (s LicenceStatus) IsTerminal() bool {
	return len(legalTransitions[s]) == 0 && s != StatusNotStarted
}

// InFlight reports whether the licence is being worked on before approval.
func (s LicenceStatus) InFlight() bool {
	return s == StatusInProgress || s == StatusSubmitted
}

var validStatuses = map[LicenceStatus]bool{
	StatusNotStarted: true, StatusInProgress: true, StatusSubmitted: true,
	StatusApproved: true, StatusActive: true, StatusInactive: true,
	StatusRecalled: true, StatusVariationInProgress: true,
	StatusVariationSubmitted: true, StatusVariationRejected: true,
	StatusVariationApproved: true, StatusTimedOut: true,
}

// ParseLicenceStatus constructs a LicenceStatus from external input.
func ParseLicenceStatus(s string) (LicenceStatus, error) {
	st := LicenceStatus(s)
	if !validStatuses[st] {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown licence status %q", s)
	}
	return st, nil
}

func (s LicenceStatus) String() string { return string(s) }
