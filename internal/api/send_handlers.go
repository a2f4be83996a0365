package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/pkg/apperr"
	"github.com/ignite/campaign-dashboard/internal/pkg/httputil"
	"github.com/ignite/campaign-dashboard/internal/service/dispatch"
)

// SendEmail sends one message after the daily quota check. The check and the
// send are not atomic, so concurrent requests can overshoot the quota by at
// most the send rate limit. Quota rejections are logged like failed sends.
//
//	POST /api/email/send
func (h *Handlers) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req dispatch.SendEmailInput
	if !httputil.Decode(w, r, &req) {
		return
	}
	user := ownerID(r)

	if _, err := h.svc.Delivery.CheckQuota(r.Context(), user, h.now()); err != nil {
		if apperr.Is(err, apperr.KindRateLimited) {
			h.svc.Delivery.Log(r.Context(), user, domain.ActionSendEmail, domain.LogError, map[string]any{
				"to": domain.NormalizeEmail(req.To), "subject": req.Subject, "error": err.Error(),
			})
		}
		respondError(w, r, err)
		return
	}

	res, err := h.svc.Dispatch.SendEmail(r.Context(), user, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, res)
}

type sendCampaignRequest struct {
	CampaignID     string     `json:"campaign_id" validate:"required,max=64"`
	ScheduledAt    *time.Time `json:"scheduled_at"`
	SelectedTags   []string   `json:"selected_tags" validate:"omitempty,dive,max=64"`
	RepeatInterval string     `json:"repeat_interval" validate:"max=100"`
	RepeatCount    int        `json:"repeat_count" validate:"min=0,max=365"`
}

// SendCampaign sends a campaign now, or schedules it when scheduled_at is
// given.
//
//	POST /api/campaigns/send
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	var req sendCampaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	user := ownerID(r)

	if req.ScheduledAt != nil {
		job, err := h.svc.Dispatch.ScheduleCampaign(r.Context(), user, req.CampaignID, dispatch.ScheduleInput{
			ScheduledAt:    *req.ScheduledAt,
			RepeatInterval: req.RepeatInterval,
			RepeatCount:    req.RepeatCount,
			SelectedTags:   req.SelectedTags,
		})
		if err != nil {
			respondError(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusAccepted, map[string]any{
			"success":   true,
			"scheduled": true,
			"job":       job,
		})
		return
	}

	res, err := h.svc.Dispatch.SendCampaign(r.Context(), user, req.CampaignID, dispatch.SendOptions{
		SelectedTags: req.SelectedTags,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, map[string]any{
		"success": true,
		"result":  res,
	})
}

// UnscheduleCampaign cancels the pending occurrences of a campaign.
//
//	POST /api/campaigns/{id}/unschedule
func (h *Handlers) UnscheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Dispatch.Unschedule(r.Context(), ownerID(r), id); err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, map[string]any{"success": true, "campaign_id": id})
}
