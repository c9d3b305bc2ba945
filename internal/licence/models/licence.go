package models

import (
	"time"

	"cvl/pkg/domain"
	dErrors "cvl/pkg/domain-errors"
)

// Licence is the aggregate root for one licence row.
//
// Invariants:
//   - Kind is immutable after creation (administrative corrections happen
//     outside the lifecycle and are audited separately)
//   - Status only moves along legalTransitions
//   - TIMED_OUT is only reachable while unapproved; an APPROVED or ACTIVE
//     licence is never timed out
//   - LicenceStartDate is always a derived function of the sentence dates and
//     kind; it is never set independently of them
//   - a person has at most one ACTIVE licence, enforced by superseding the
//     original inside the same transaction that activates a variation
type Licence struct {
	ID       domain.LicenceID `json:"id"`
	Kind     LicenceKind      `json:"kind"`
	TypeCode LicenceType      `json:"typeCode"`
	Status   LicenceStatus    `json:"status"`

	NomisID   domain.NomisID   `json:"nomisId"`
	CRN       domain.CRN       `json:"crn"`
	BookingID domain.BookingID `json:"bookingId,omitempty"`

	// VersionOf points at the licence this row was varied from; nil for
	// originals. A variation is a new row, never a mutation of the original.
	VersionOf *domain.LicenceID `json:"versionOf,omitempty"`

	ConditionalReleaseDate        *time.Time `json:"conditionalReleaseDate,omitempty"`
	ActualReleaseDate             *time.Time `json:"actualReleaseDate,omitempty"`
	PostRecallReleaseDate         *time.Time `json:"postRecallReleaseDate,omitempty"`
	LicenceExpiryDate             *time.Time `json:"licenceExpiryDate,omitempty"`
	TopupSupervisionExpiryDate    *time.Time `json:"topupSupervisionExpiryDate,omitempty"`
	SentenceStartDate             *time.Time `json:"sentenceStartDate,omitempty"`
	SentenceEndDate               *time.Time `json:"sentenceEndDate,omitempty"`
	HomeDetentionCurfewActualDate *time.Time `json:"homeDetentionCurfewActualDate,omitempty"`
	HomeDetentionCurfewEndDate    *time.Time `json:"homeDetentionCurfewEndDate,omitempty"`

	// LicenceStartDate is the canonical start date derived from the dates
	// above and the kind; recalculated whenever upstream dates move.
	LicenceStartDate *time.Time `json:"licenceStartDate,omitempty"`

	Conditions []Condition `json:"conditions,omitempty"`

	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedBy string    `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`

	SubmittedBy *string    `json:"submittedBy,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	ApprovedBy  *string    `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`

	// StatusReason records the free-text reason for manual overrides; empty
	// for ordinary workflow and job transitions.
	StatusReason string `json:"statusReason,omitempty"`
}

// CanTransitionTo checks both the transition map and the cross-cutting
// timed-out invariant. Returns a precondition error naming the violation.
func (l *Licence) CanTransitionTo(to LicenceStatus) error {
	if to == StatusTimedOut && !l.Status.InFlight() {
		return dErrors.Newf(dErrors.CodePreconditionFailed,
			"licence %s cannot time out from status %s", l.ID, l.Status)
	}
	if !l.Status.CanTransitionTo(to) {
		return dErrors.Newf(dErrors.CodePreconditionFailed,
			"licence %s cannot move from %s to %s", l.ID, l.Status, to)
	}
	return nil
}

// ApplyTransition moves the licence to the new status with attribution.
// Call CanTransitionTo first; this applies unconditionally.
func (l *Licence) ApplyTransition(to LicenceStatus, actor domain.Principal, now time.Time) {
	l.Status = to
	l.UpdatedBy = actor.Username
	l.UpdatedAt = now
}

// Transition validates and applies a status change in one call.
func (l *Licence) Transition(to LicenceStatus, actor domain.Principal, now time.Time) error {
	if err := l.CanTransitionTo(to); err != nil {
		return err
	}
	l.ApplyTransition(to, actor, now)
	return nil
}

// Submit moves an in-progress licence (or variation) to its submitted state.
func (l *Licence) Submit(actor domain.Principal, now time.Time) error {
	target := StatusSubmitted
	if l.Status.IsVariation() {
		target = StatusVariationSubmitted
	}
	if err := l.Transition(target, actor, now); err != nil {
		return err
	}
	by := actor.Username
	l.SubmittedBy = &by
	l.SubmittedAt = &now
	return nil
}

// Approve records the approval decision.
func (l *Licence) Approve(actor domain.Principal, now time.Time) error {
	target := StatusApproved
	if l.Status.IsVariation() {
		target = StatusVariationApproved
	}
	if err := l.Transition(target, actor, now); err != nil {
		return err
	}
	by := actor.Username
	l.ApprovedBy = &by
	l.ApprovedAt = &now
	return nil
}

// ExpiryDate returns the date after which an active licence expires:
// the top-up-supervision expiry when present, otherwise the licence expiry.
func (l *Licence) ExpiryDate() *time.Time {
	if l.TopupSupervisionExpiryDate != nil {
		return l.TopupSupervisionExpiryDate
	}
	return l.LicenceExpiryDate
}

// InPSSPeriod reports whether only post-sentence supervision remains on the
// given day: either the licence is PSS-only, or its AP period has ended.
func (l *Licence) InPSSPeriod(today time.Time) bool {
	if l.TopupSupervisionExpiryDate == nil {
		return false
	}
	if l.LicenceExpiryDate == nil {
		return l.TypeCode == TypePSS
	}
	return today.After(*l.LicenceExpiryDate)
}

// IsVariation reports whether this row was created as a variation of another.
func (l *Licence) IsVariation() bool { return l.VersionOf != nil }
