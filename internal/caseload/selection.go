// Package caseload builds the read-side views probation and prison staff work
// from. A person can accumulate several licence rows over time (an original,
// a hard-stop duplicate, a timed-out predecessor); the composers here pick
// the single operationally current row per person and fuse it with the
// derived case record.
package caseload

import (
	"sort"

	"cvl/internal/licence/models"
)

// RelevantLicence picks the one row to display when a person has several.
//
// Priority: a HARD_STOP row shadows everything, then a TIME_SERVED row, then
// the timed-out path: if a TIMED_OUT row superseded a previously approved
// licence, the approved row is shown with its status overridden to
// TIMED_OUT, otherwise the timed-out row itself. Among ordinary rows the
// newest non-APPROVED row wins over an APPROVED one, because later-created
// rows represent the path currently being worked.
//
// The returned licence is a copy when its display status differs from the
// stored one; callers never mutate persisted state through it.
func RelevantLicence(licences []*models.Licence) *models.Licence {
	if len(licences) == 0 {
		return nil
	}

	sorted := make([]*models.Licence, len(licences))
	copy(sorted, licences)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	for _, l := range sorted {
		if l.Kind == models.KindHardStop {
			return l
		}
	}
	for _, l := range sorted {
		if l.Kind == models.KindTimeServed {
			return l
		}
	}

	byID := make(map[int64]*models.Licence, len(sorted))
	for _, l := range sorted {
		byID[l.ID.Int64()] = l
	}
	for _, l := range sorted {
		if l.Status != models.StatusTimedOut {
			continue
		}
		if l.VersionOf != nil {
			if predecessor, ok := byID[l.VersionOf.Int64()]; ok && predecessor.Status == models.StatusApproved {
				overridden := *predecessor
				overridden.Status = models.StatusTimedOut
				return &overridden
			}
		}
		return l
	}

	for _, l := range sorted {
		if l.Status != models.StatusApproved {
			return l
		}
	}
	return sorted[0]
}
