package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/pkg/httputil"
	"github.com/ignite/campaign-dashboard/internal/service/suppression"
)

// ListSuppressions returns a page of suppressed addresses.
//
//	GET /api/suppressions?reason=&search=&page=&limit=
func (h *Handlers) ListSuppressions(w http.ResponseWriter, r *http.Request) {
	p := pageFromQuery(r)
	q := r.URL.Query()

	items, total, err := h.svc.Suppressions.List(r.Context(), ownerID(r), suppression.ListFilter{
		Reason: strings.TrimSpace(q.Get("reason")),
		Search: strings.TrimSpace(q.Get("search")),
		Limit:  p.Limit,
		Offset: p.Offset(),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, newPageResponse(items, p, total))
}

type suppressRequest struct {
	Email  string `json:"email" validate:"required,max=320"`
	Reason string `json:"reason" validate:"required,max=32"`
}

// AddSuppression suppresses an address. Suppressing an address twice
// returns the existing entry.
func (h *Handlers) AddSuppression(w http.ResponseWriter, r *http.Request) {
	var req suppressRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	s, err := h.svc.Suppressions.Suppress(r.Context(), ownerID(r), req.Email, domain.SuppressionReason(req.Reason))
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.Created(w, s)
}

// RemoveSuppression lifts the suppression of an address.
//
//	DELETE /api/suppressions/{email}
func (h *Handlers) RemoveSuppression(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if u, err := url.PathUnescape(email); err == nil {
		email = u
	}
	if err := h.svc.Suppressions.Remove(r.Context(), ownerID(r), email); err != nil {
		respondError(w, r, err)
		return
	}
	httputil.NoContent(w)
}

// SuppressionStats returns suppression counts by reason.
func (h *Handlers) SuppressionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Suppressions.GetStats(r.Context(), ownerID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, stats)
}
