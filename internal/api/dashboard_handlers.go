package api

import (
	"net/http"
	"strings"

	"github.com/ignite/campaign-dashboard/internal/pkg/httputil"
	"github.com/ignite/campaign-dashboard/internal/service/delivery"
)

// ListLogs returns a page of the caller's delivery log, newest first.
//
//	GET /api/logs?action=&status=&page=&limit=
func (h *Handlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	p := pageFromQuery(r)
	q := r.URL.Query()

	items, total, err := h.svc.Delivery.List(r.Context(), ownerID(r), delivery.ListFilter{
		Action: strings.TrimSpace(q.Get("action")),
		Status: strings.TrimSpace(q.Get("status")),
		Limit:  p.Limit,
		Offset: p.Offset(),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, newPageResponse(items, p, total))
}

// GetStats returns the dashboard summary.
//
//	GET /api/stats
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Delivery.Stats(r.Context(), ownerID(r), h.now())
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, stats)
}
