// Package cvl builds the derived case record: one fused view per person of
// prison data, eligibility and resolved dates. Records are recomputed on
// every use; upstream dates can change at any time, so nothing here is
// cached or persisted.
package cvl

import (
	"time"

	"cvl/internal/licence/models"
	"cvl/internal/releasedate"
	"cvl/pkg/domain"
)

// Record is the derived per-person view driving caseload reads and jobs.
type Record struct {
	NomisID domain.NomisID `json:"nomisId"`
	CRN     domain.CRN     `json:"crn,omitempty"`

	IsEligible   bool                `json:"isEligible"`
	EligibleKind *models.LicenceKind `json:"eligibleKind,omitempty"`
	// HardStopKind is the kind a prison-side creation would take if the
	// hard-stop deadline passes unactioned. Only CRD-eligible cases have one.
	HardStopKind *models.LicenceKind `json:"hardStopKind,omitempty"`

	LicenceType         models.LicenceType `json:"licenceType,omitempty"`
	LicenceStartDate    *time.Time         `json:"licenceStartDate,omitempty"`
	HardStopDate        *time.Time         `json:"hardStopDate,omitempty"`
	HardStopWarningDate *time.Time         `json:"hardStopWarningDate,omitempty"`

	IsInHardStopPeriod                       bool `json:"isInHardStopPeriod"`
	IsDueToBeReleasedInTheNextTwoWorkingDays bool `json:"isDueToBeReleasedInTheNextTwoWorkingDays"`
	IsTimedOut                               bool `json:"isTimedOut"`

	// IneligibilityReasons explains, per kind, why no licence can be started.
	// Empty when IsEligible.
	IneligibilityReasons map[models.LicenceKind][]string `json:"ineligibilityReasons,omitempty"`

	// SentenceDates snapshots the raw upstream dates the record was derived
	// from, so licence creation can stamp them without a second fetch.
	SentenceDates     releasedate.SentenceDates `json:"-"`
	BookingID         domain.BookingID          `json:"-"`
	SentenceStartDate *time.Time                `json:"-"`
	SentenceEndDate   *time.Time                `json:"-"`
}
