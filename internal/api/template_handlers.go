package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dashboard/internal/pkg/httputil"
	"github.com/ignite/campaign-dashboard/internal/service/template"
)

func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	p := pageFromQuery(r)
	items, total, err := h.svc.Templates.List(r.Context(), ownerID(r), template.ListFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  p.Limit,
		Offset: p.Offset(),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, newPageResponse(items, p, total))
}

func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Templates.Get(r.Context(), ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, t)
}

func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req template.CreateInput
	if !httputil.Decode(w, r, &req) {
		return
	}
	t, err := h.svc.Templates.Create(r.Context(), ownerID(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.Created(w, t)
}

func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req template.UpdateFields
	if !httputil.Decode(w, r, &req) {
		return
	}
	t, err := h.svc.Templates.Update(r.Context(), ownerID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, t)
}

func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Templates.Delete(r.Context(), ownerID(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	httputil.NoContent(w)
}

// PreviewTemplate renders a template against a contact or sample variables.
//
//	POST /api/templates/{id}/preview
func (h *Handlers) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	var req template.PreviewInput
	if !httputil.Decode(w, r, &req) {
		return
	}
	p, err := h.svc.Templates.Preview(r.Context(), ownerID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, p)
}
