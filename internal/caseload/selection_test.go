package caseload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvl/internal/licence/models"
	"cvl/pkg/domain"
)

func licenceRow(id int64, kind models.LicenceKind, status models.LicenceStatus) *models.Licence {
	return &models.Licence{
		ID:      domain.LicenceID(id),
		Kind:    kind,
		Status:  status,
		NomisID: "A1234BC",
	}
}

func TestRelevantLicenceEmpty(t *testing.T) {
	assert.Nil(t, RelevantLicence(nil))
}

func TestRelevantLicenceSingleRow(t *testing.T) {
	row := licenceRow(1, models.KindCRD, models.StatusInProgress)
	assert.Same(t, row, RelevantLicence([]*models.Licence{row}))
}

func TestRelevantLicenceHardStopShadowsEverything(t *testing.T) {
	inProgress := licenceRow(1, models.KindCRD, models.StatusInProgress)
	hardStop := licenceRow(2, models.KindHardStop, models.StatusInProgress)
	timeServed := licenceRow(3, models.KindTimeServed, models.StatusActive)

	got := RelevantLicence([]*models.Licence{inProgress, timeServed, hardStop})
	assert.Same(t, hardStop, got)
}

func TestRelevantLicenceTimeServedShadowsOrdinaryRows(t *testing.T) {
	active := licenceRow(1, models.KindCRD, models.StatusActive)
	timeServed := licenceRow(2, models.KindTimeServed, models.StatusActive)

	got := RelevantLicence([]*models.Licence{active, timeServed})
	assert.Same(t, timeServed, got)
}

func TestRelevantLicenceTimedOutShowsApprovedPredecessor(t *testing.T) {
	approved := licenceRow(1, models.KindCRD, models.StatusApproved)
	predecessor := approved.ID
	timedOut := licenceRow(2, models.KindCRD, models.StatusTimedOut)
	timedOut.VersionOf = &predecessor

	got := RelevantLicence([]*models.Licence{approved, timedOut})
	require.NotNil(t, got)
	assert.Equal(t, approved.ID, got.ID)
	assert.Equal(t, models.StatusTimedOut, got.Status)
	// The stored row must not be touched.
	assert.Equal(t, models.StatusApproved, approved.Status)
}

func TestRelevantLicenceTimedOutWithoutPredecessor(t *testing.T) {
	inProgress := licenceRow(1, models.KindCRD, models.StatusInProgress)
	timedOut := licenceRow(2, models.KindCRD, models.StatusTimedOut)

	got := RelevantLicence([]*models.Licence{inProgress, timedOut})
	assert.Same(t, timedOut, got)
}

func TestRelevantLicenceTimedOutPredecessorNotApproved(t *testing.T) {
	submitted := licenceRow(1, models.KindCRD, models.StatusSubmitted)
	predecessor := submitted.ID
	timedOut := licenceRow(2, models.KindCRD, models.StatusTimedOut)
	timedOut.VersionOf = &predecessor

	got := RelevantLicence([]*models.Licence{submitted, timedOut})
	assert.Same(t, timedOut, got)
}

func TestRelevantLicencePrefersNonApproved(t *testing.T) {
	approved := licenceRow(1, models.KindCRD, models.StatusApproved)
	variation := licenceRow(2, models.KindCRD, models.StatusVariationInProgress)

	got := RelevantLicence([]*models.Licence{approved, variation})
	assert.Same(t, variation, got)
}

func TestRelevantLicenceAllApprovedTakesNewest(t *testing.T) {
	older := licenceRow(1, models.KindCRD, models.StatusApproved)
	newer := licenceRow(2, models.KindCRD, models.StatusApproved)

	got := RelevantLicence([]*models.Licence{older, newer})
	assert.Same(t, newer, got)
}
