// Package eligibility decides which licence kind, if any, a person's sentence
// makes them eligible for, and returns the reasons when they are not. Reasons
// are a closed set of strings so failures stay diagnosable downstream.
package eligibility

import (
	"time"

	"cvl/internal/licence/models"
	"cvl/internal/prison"
	"cvl/internal/releasedate"
	"cvl/pkg/domain"
)

// Ineligibility reasons. Each names the rule that failed, not just "no".
const (
	ReasonIndeterminateSentence = "has an indeterminate sentence"
	ReasonDead                  = "is recorded as dead in the prison system"
	ReasonNoReleaseDate         = "has no conditional release date"
	ReasonReleaseInPast         = "release date is in the past"
	ReasonParoleEligible        = "is eligible for parole before release"
	ReasonRecallNoFuturePRRD    = "is recalled with no future post-recall release date"
	ReasonCurfewNotApproved     = "home detention curfew is not approved"
)

// Assessment is the per-person result: the eligible kind when any, the kind a
// hard-stop creation would take, and why each failed kind failed.
type Assessment struct {
	NomisID      domain.NomisID
	EligibleKind *models.LicenceKind
	HardStopKind *models.LicenceKind
	// Reasons lists ineligibility reasons per kind; empty when EligibleKind is set.
	Reasons map[models.LicenceKind][]string
}

// IsEligible reports whether any kind applies.
func (a Assessment) IsEligible() bool { return a.EligibleKind != nil }

// Assess evaluates one prisoner record. HDC approval state comes from the
// prison API and is passed in alongside the record.
func Assess(p prison.Prisoner, curfewApproved bool, today time.Time) Assessment {
	a := Assessment{
		NomisID: p.NomisID,
		Reasons: make(map[models.LicenceKind][]string),
	}

	if common := commonExclusions(p); len(common) > 0 {
		a.Reasons[models.KindCRD] = common
		a.Reasons[models.KindHDC] = common
		a.Reasons[models.KindPRRD] = common
		return a
	}

	// Recall cases with a live PRRD still race it against the CRD: the PRRD
	// wins only when it lands strictly after the CRD, ties and earlier PRRDs
	// fall back to the standard release.
	if p.Recall {
		if p.PostRecallReleaseDate != nil && !p.PostRecallReleaseDate.Before(today) {
			kind := releasedate.ResolveKind(releasedate.SentenceDates{
				ConditionalReleaseDate: p.ConditionalReleaseDate,
				PostRecallReleaseDate:  p.PostRecallReleaseDate,
			}, today)
			a.EligibleKind = &kind
			if kind == models.KindCRD {
				hardStop := models.KindHardStop
				a.HardStopKind = &hardStop
			}
			return a
		}
		a.Reasons[models.KindPRRD] = []string{ReasonRecallNoFuturePRRD}
		a.Reasons[models.KindCRD] = []string{ReasonRecallNoFuturePRRD}
		a.Reasons[models.KindHDC] = []string{ReasonRecallNoFuturePRRD}
		return a
	}

	if hdcReasons := hdcExclusions(p, curfewApproved, today); len(hdcReasons) == 0 {
		kind := models.KindHDC
		a.EligibleKind = &kind
		return a
	} else {
		a.Reasons[models.KindHDC] = hdcReasons
	}

	if crdReasons := crdExclusions(p, today); len(crdReasons) == 0 {
		kind := models.KindCRD
		hardStop := models.KindHardStop
		a.EligibleKind = &kind
		a.HardStopKind = &hardStop
		return a
	} else {
		a.Reasons[models.KindCRD] = crdReasons
	}

	return a
}

// AssessBatch evaluates a batch, indexing curfew state by booking.
func AssessBatch(prisoners []prison.Prisoner, curfews []prison.CurfewStatus, today time.Time) map[domain.NomisID]Assessment {
	approved := make(map[domain.BookingID]bool, len(curfews))
	for _, c := range curfews {
		approved[c.BookingID] = c.Approved()
	}
	out := make(map[domain.NomisID]Assessment, len(prisoners))
	for _, p := range prisoners {
		out[p.NomisID] = Assess(p, approved[p.BookingID], today)
	}
	return out
}

func commonExclusions(p prison.Prisoner) []string {
	var reasons []string
	if p.Indeterminate {
		reasons = append(reasons, ReasonIndeterminateSentence)
	}
	if p.LegalStatus == prison.LegalStatusDead {
		reasons = append(reasons, ReasonDead)
	}
	return reasons
}

func crdExclusions(p prison.Prisoner, today time.Time) []string {
	var reasons []string
	if p.ConditionalReleaseDate == nil {
		return append(reasons, ReasonNoReleaseDate)
	}
	release := p.ConditionalReleaseDate
	if p.ConfirmedReleaseDate != nil {
		release = p.ConfirmedReleaseDate
	}
	if release.Before(today) {
		reasons = append(reasons, ReasonReleaseInPast)
	}
	if p.ParoleEligibilityDate != nil && p.ParoleEligibilityDate.Before(*p.ConditionalReleaseDate) {
		reasons = append(reasons, ReasonParoleEligible)
	}
	return reasons
}

func hdcExclusions(p prison.Prisoner, curfewApproved bool, today time.Time) []string {
	var reasons []string
	if p.HomeDetentionCurfewEligibilityDate == nil || p.HomeDetentionCurfewActualDate == nil {
		reasons = append(reasons, ReasonNoReleaseDate)
	}
	if !curfewApproved {
		reasons = append(reasons, ReasonCurfewNotApproved)
	}
	if p.HomeDetentionCurfewActualDate != nil && p.HomeDetentionCurfewActualDate.Before(today) {
		reasons = append(reasons, ReasonReleaseInPast)
	}
	return reasons
}
