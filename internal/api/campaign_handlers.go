package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/pkg/apperr"
	"github.com/ignite/campaign-dashboard/internal/pkg/httputil"
	"github.com/ignite/campaign-dashboard/internal/service/campaign"
)

// ListCampaigns returns a page of campaigns, optionally filtered by status.
//
//	GET /api/campaigns?status=&search=&page=&limit=
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	p := pageFromQuery(r)
	q := r.URL.Query()

	status := strings.TrimSpace(q.Get("status"))
	if status != "" && !domain.CampaignStatus(status).Valid() {
		httputil.WriteError(w, r, apperr.Validation("", "unknown campaign status %q", status))
		return
	}

	items, total, err := h.svc.Campaigns.List(r.Context(), ownerID(r), campaign.ListFilter{
		Status: status,
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

func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Campaigns.Get(r.Context(), ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaign.CreateInput
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.svc.Campaigns.Create(r.Context(), ownerID(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.Created(w, c)
}

// UpdateCampaign edits a draft campaign.
func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaign.UpdateFields
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.svc.Campaigns.Update(r.Context(), ownerID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, c)
}

// DeleteCampaign removes a campaign that is not sending.
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Campaigns.Delete(r.Context(), ownerID(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	httputil.NoContent(w)
}

// ListCampaignJobs returns the scheduled occurrences of a campaign.
//
//	GET /api/campaigns/{id}/jobs
func (h *Handlers) ListCampaignJobs(w http.ResponseWriter, r *http.Request) {
	user, id := ownerID(r), chi.URLParam(r, "id")
	if _, err := h.svc.Campaigns.Get(r.Context(), user, id); err != nil {
		respondError(w, r, err)
		return
	}
	jobs, err := h.svc.Jobs.ListByCampaign(r.Context(), user, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, map[string]any{"jobs": orEmpty(jobs)})
}
