package prison

import (
	"time"

	"cvl/pkg/domain"
)

// Prisoner is the slice of the prison record this engine needs: identifiers,
// legal status and the sentence dates that drive kind and start-date
// resolution. It is upstream data, re-fetched on every use because the dates
// can change at any time.
type Prisoner struct {
	NomisID   domain.NomisID   `json:"prisonerNumber"`
	BookingID domain.BookingID `json:"bookingId"`
	FirstName string           `json:"firstName"`
	LastName  string           `json:"lastName"`

	LegalStatus   string `json:"legalStatus"`
	Indeterminate bool   `json:"indeterminateSentence"`
	Recall        bool   `json:"recall"`

	ConditionalReleaseDate             *time.Time `json:"conditionalReleaseDate,omitempty"`
	ConfirmedReleaseDate               *time.Time `json:"confirmedReleaseDate,omitempty"`
	PostRecallReleaseDate              *time.Time `json:"postRecallReleaseDate,omitempty"`
	LicenceExpiryDate                  *time.Time `json:"licenceExpiryDate,omitempty"`
	TopupSupervisionExpiryDate         *time.Time `json:"topupSupervisionExpiryDate,omitempty"`
	HomeDetentionCurfewEligibilityDate *time.Time `json:"homeDetentionCurfewEligibilityDate,omitempty"`
	HomeDetentionCurfewActualDate      *time.Time `json:"homeDetentionCurfewActualDate,omitempty"`
	ParoleEligibilityDate              *time.Time `json:"paroleEligibilityDate,omitempty"`
	SentenceStartDate                  *time.Time `json:"sentenceStartDate,omitempty"`
	SentenceEndDate                    *time.Time `json:"sentenceExpiryDate,omitempty"`
}

// LegalStatusDead marks records that must never receive a licence.
const LegalStatusDead = "DEAD"

// CurfewApprovalStatus is the prison system's decision on a home detention
// curfew application.
type CurfewApprovalStatus string

const (
	CurfewApproved CurfewApprovalStatus = "APPROVED"
	CurfewRejected CurfewApprovalStatus = "REJECTED"
	CurfewPending  CurfewApprovalStatus = "PENDING"
)

// CurfewStatus is the HDC approval state for one booking.
type CurfewStatus struct {
	BookingID      domain.BookingID     `json:"bookingId"`
	ApprovalStatus CurfewApprovalStatus `json:"approvalStatus"`
}

// Approved reports whether the curfew application is currently approved.
func (c CurfewStatus) Approved() bool { return c.ApprovalStatus == CurfewApproved }
