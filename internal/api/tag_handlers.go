package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dashboard/internal/pkg/httputil"
	"github.com/ignite/campaign-dashboard/internal/service/tag"
)

// ListTags returns every tag of the caller.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Tags.List(r.Context(), ownerID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, map[string]any{"tags": orEmpty(items)})
}

// CreateTag adds a tag.
func (h *Handlers) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req tag.CreateInput
	if !httputil.Decode(w, r, &req) {
		return
	}
	t, err := h.svc.Tags.Create(r.Context(), ownerID(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.Created(w, t)
}

// UpdateTag renames or restyles a tag. A rename is applied to every
// contact carrying the old name.
func (h *Handlers) UpdateTag(w http.ResponseWriter, r *http.Request) {
	var req tag.UpdateFields
	if !httputil.Decode(w, r, &req) {
		return
	}
	t, err := h.svc.Tags.Update(r.Context(), ownerID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, t)
}

// DeleteTag removes a tag and strips it from contacts.
func (h *Handlers) DeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Tags.Delete(r.Context(), ownerID(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	httputil.NoContent(w)
}
