package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dashboard/internal/pkg/apperr"
	"github.com/ignite/campaign-dashboard/internal/pkg/httputil"
	"github.com/ignite/campaign-dashboard/internal/pkg/logger"
	"github.com/ignite/campaign-dashboard/internal/service/contact"
	"github.com/ignite/campaign-dashboard/internal/storage"
)

// ListContacts returns a page of contacts.
//
//	GET /api/contacts?search=&tag=&page=&limit=
func (h *Handlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	p := pageFromQuery(r)
	q := r.URL.Query()

	items, total, err := h.svc.Contacts.List(r.Context(), ownerID(r), contact.ListFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Tag:    strings.TrimSpace(q.Get("tag")),
		Limit:  p.Limit,
		Offset: p.Offset(),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, newPageResponse(items, p, total))
}

// GetContact returns one contact.
func (h *Handlers) GetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Contacts.Get(r.Context(), ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, c)
}

// CreateContact adds a contact.
func (h *Handlers) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req contact.CreateInput
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.svc.Contacts.Create(r.Context(), ownerID(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.Created(w, c)
}

type updateContactRequest struct {
	Email       *string   `json:"email" validate:"omitempty,email,max=320"`
	DisplayName *string   `json:"display_name" validate:"omitempty,max=200"`
	Tags        *[]string `json:"tags"`
	SegmentID   *string   `json:"segment_id" validate:"omitempty,max=64"`
}

// UpdateContact applies a partial update.
func (h *Handlers) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req updateContactRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.svc.Contacts.Update(r.Context(), ownerID(r), chi.URLParam(r, "id"), contact.UpdateFields{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Tags:        req.Tags,
		SegmentID:   req.SegmentID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, c)
}

// DeleteContact removes a contact.
func (h *Handlers) DeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Contacts.Delete(r.Context(), ownerID(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	httputil.NoContent(w)
}

type contactTagsRequest struct {
	Tags []string `json:"tags" validate:"required,min=1,dive,required,max=64"`
}

// AddContactTags attaches tags to a contact.
//
//	POST /api/contacts/{id}/tags
func (h *Handlers) AddContactTags(w http.ResponseWriter, r *http.Request) {
	var req contactTagsRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.svc.Contacts.AddTags(r.Context(), ownerID(r), chi.URLParam(r, "id"), req.Tags)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, c)
}

// RemoveContactTags detaches tags from a contact.
//
//	DELETE /api/contacts/{id}/tags
func (h *Handlers) RemoveContactTags(w http.ResponseWriter, r *http.Request) {
	var req contactTagsRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.svc.Contacts.RemoveTags(r.Context(), ownerID(r), chi.URLParam(r, "id"), req.Tags)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, c)
}

// ResolveContacts previews the recipients an audience filter selects.
//
//	POST /api/contacts/resolve
func (h *Handlers) ResolveContacts(w http.ResponseWriter, r *http.Request) {
	var req contact.Filter
	if !httputil.Decode(w, r, &req) {
		return
	}
	items, err := h.svc.Contacts.Resolve(r.Context(), ownerID(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.OK(w, map[string]any{
		"count":    len(items),
		"contacts": orEmpty(items),
	})
}

type importRequest struct {
	Bucket string   `json:"bucket" validate:"omitempty,max=255"`
	Key    string   `json:"key" validate:"required,max=1024"`
	Tags   []string `json:"tags" validate:"omitempty,dive,max=64"`
}

// ImportContacts upserts contacts from a CSV file. The file is either the
// "file" part of a multipart upload or an object named by {bucket, key}.
// Objects are only read from the configured bucket and under the caller's
// imports/<owner>/ prefix; bucket may be omitted.
// The import report is saved next to the other reports when storage is
// configured.
//
//	POST /api/contacts/import
func (h *Handlers) ImportContacts(w http.ResponseWriter, r *http.Request) {
	var (
		src  io.ReadCloser
		tags []string
	)
	if httputil.IsMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImportSize)
		file, _, err := r.FormFile("file")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				httputil.WriteError(w, r, apperr.Validation("", "import file exceeds %d bytes", storage.MaxImportSize))
				return
			}
			httputil.WriteError(w, r, apperr.Validation("", "multipart field \"file\" is required"))
			return
		}
		src = file
		tags = splitTags(r.FormValue("tags"))
	} else {
		var req importRequest
		if !httputil.Decode(w, r, &req) {
			return
		}
		if h.svc.Imports == nil || h.svc.ReportBucket == "" {
			httputil.WriteError(w, r, apperr.Validation("", "remote import is not configured"))
			return
		}
		if req.Bucket != "" && req.Bucket != h.svc.ReportBucket {
			httputil.WriteError(w, r, apperr.Validation("", "imports are read from bucket %q only", h.svc.ReportBucket))
			return
		}
		if !storage.OwnsKey(ownerID(r), req.Key) {
			httputil.WriteError(w, r, apperr.Validation("", "key must be under %s", storage.ImportPrefix(ownerID(r))))
			return
		}
		rc, err := h.svc.Imports.Open(r.Context(), h.svc.ReportBucket, req.Key)
		if err != nil {
			respondError(w, r, err)
			return
		}
		src = rc
		tags = req.Tags
	}
	defer src.Close()

	user := ownerID(r)
	started := h.now()
	res, err := h.svc.Contacts.Import(r.Context(), user, src, tags)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			err = apperr.Validation("", "import file exceeds %d bytes", storage.MaxImportSize)
		}
		respondError(w, r, err)
		return
	}

	resp := map[string]any{"success": true, "result": res}
	if h.svc.Imports != nil && h.svc.ReportBucket != "" {
		key := storage.ReportKey(user, started)
		if err := h.svc.Imports.SaveJSON(r.Context(), h.svc.ReportBucket, key, res); err != nil {
			logger.Warn("api: save import report failed", "key", key, "error", err)
		} else {
			resp["report_key"] = key
		}
	}
	httputil.OK(w, resp)
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return contact.NormalizeTags(strings.Split(s, ","))
}
