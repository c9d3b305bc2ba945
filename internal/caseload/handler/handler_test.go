package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvl/internal/caseload"
	"cvl/internal/licence/models"
	dErrors "cvl/pkg/domain-errors"
	"cvl/pkg/testutil"
)

type fakeCaseloads struct {
	entries   []caseload.Entry
	err       error
	staffCode string
	teamCodes []string
}

func (f *fakeCaseloads) CreateCaseload(_ context.Context, staffCode string) ([]caseload.Entry, error) {
	f.staffCode = staffCode
	return f.entries, f.err
}

func (f *fakeCaseloads) VaryCaseload(_ context.Context, staffCode string) ([]caseload.Entry, error) {
	f.staffCode = staffCode
	return f.entries, f.err
}

func (f *fakeCaseloads) ApproverCaseload(_ context.Context, teamCodes []string) ([]caseload.Entry, error) {
	f.teamCodes = teamCodes
	return f.entries, f.err
}

func newRouter(caseloads *fakeCaseloads) chi.Router {
	router := chi.NewRouter()
	New(caseloads, slog.New(slog.DiscardHandler)).Register(router)
	return router
}

func TestCreateCaseloadRoute(t *testing.T) {
	caseloads := &fakeCaseloads{entries: []caseload.Entry{
		{NomisID: "A1234BC", CRN: "X123456", Status: models.StatusNotStarted},
	}}
	router := newRouter(caseloads)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/caseload/com/X1000/create"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "X1000", caseloads.staffCode)
	var got []caseload.Entry
	testutil.DecodeJSON(t, rr, &got)
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusNotStarted, got[0].Status)
}

func TestVaryCaseloadRoute(t *testing.T) {
	caseloads := &fakeCaseloads{entries: []caseload.Entry{}}
	router := newRouter(caseloads)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/caseload/com/X1000/vary"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "X1000", caseloads.staffCode)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestApproverCaseloadRoute(t *testing.T) {
	caseloads := &fakeCaseloads{entries: []caseload.Entry{}}
	router := newRouter(caseloads)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/caseload/approver?teamCode=TEAM-A&teamCode=TEAM-B"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"TEAM-A", "TEAM-B"}, caseloads.teamCodes)
}

func TestApproverCaseloadRequiresTeamCode(t *testing.T) {
	router := newRouter(&fakeCaseloads{})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/caseload/approver"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCaseloadUpstreamFailure(t *testing.T) {
	caseloads := &fakeCaseloads{err: dErrors.New(dErrors.CodeUnavailable, "probation case fetch failed")}
	router := newRouter(caseloads)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/caseload/com/X1000/create"))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
}
