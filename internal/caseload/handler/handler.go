// Package handler exposes the caseload read endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cvl/internal/caseload"
	dErrors "cvl/pkg/domain-errors"
	"cvl/pkg/platform/httputil"
)

// Caseloads is the composer surface the handler reads from.
type Caseloads interface {
	CreateCaseload(ctx context.Context, staffCode string) ([]caseload.Entry, error)
	VaryCaseload(ctx context.Context, staffCode string) ([]caseload.Entry, error)
	ApproverCaseload(ctx context.Context, teamCodes []string) ([]caseload.Entry, error)
}

type Handler struct {
	caseloads Caseloads
	logger    *slog.Logger
}

func New(caseloads Caseloads, logger *slog.Logger) *Handler {
	return &Handler{caseloads: caseloads, logger: logger}
}

// Register mounts the caseload routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/caseload", func(r chi.Router) {
		r.Get("/com/{staffCode}/create", h.handleCreate)
		r.Get("/com/{staffCode}/vary", h.handleVary)
		r.Get("/approver", h.handleApprover)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.byStaff(w, r, h.caseloads.CreateCaseload)
}

func (h *Handler) handleVary(w http.ResponseWriter, r *http.Request) {
	h.byStaff(w, r, h.caseloads.VaryCaseload)
}

func (h *Handler) byStaff(w http.ResponseWriter, r *http.Request, load func(context.Context, string) ([]caseload.Entry, error)) {
	staffCode := chi.URLParam(r, "staffCode")
	if staffCode == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "staff code is required"))
		return
	}
	entries, err := load(r.Context(), staffCode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

// handleApprover lists pending submissions for the teams named by repeated
// teamCode query parameters.
func (h *Handler) handleApprover(w http.ResponseWriter, r *http.Request) {
	teamCodes := r.URL.Query()["teamCode"]
	if len(teamCodes) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "at least one teamCode is required"))
		return
	}
	entries, err := h.caseloads.ApproverCaseload(r.Context(), teamCodes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}
