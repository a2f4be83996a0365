package api

import (
	"errors"
	"net/http"

	"github.com/ignite/campaign-dashboard/internal/pkg/apperr"
	"github.com/ignite/campaign-dashboard/internal/pkg/httputil"
	"github.com/ignite/campaign-dashboard/internal/service/campaign"
	"github.com/ignite/campaign-dashboard/internal/service/contact"
	"github.com/ignite/campaign-dashboard/internal/service/suppression"
	"github.com/ignite/campaign-dashboard/internal/service/tag"
	"github.com/ignite/campaign-dashboard/internal/service/template"
	"github.com/ignite/campaign-dashboard/internal/storage"
)

// classify turns service sentinel errors into typed application errors.
// Errors that are already typed pass through, and anything unknown is
// treated as internal.
func classify(err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, contact.ErrNotFound):
		return apperr.NotFound("contact")
	case errors.Is(err, tag.ErrNotFound):
		return apperr.NotFound("tag")
	case errors.Is(err, template.ErrNotFound):
		return apperr.NotFound("template")
	case errors.Is(err, campaign.ErrNotFound):
		return apperr.NotFound("campaign")
	case errors.Is(err, suppression.ErrNotFound):
		return apperr.NotFound("suppression entry")
	case errors.Is(err, storage.ErrObjectNotFound):
		return apperr.NotFound("import file")

	case errors.Is(err, contact.ErrDuplicateEmail),
		errors.Is(err, tag.ErrDuplicateName),
		errors.Is(err, campaign.ErrInvalidTransition),
		errors.Is(err, campaign.ErrNotEditable),
		errors.Is(err, campaign.ErrAlreadySending):
		return apperr.Conflict(err.Error())

	case errors.Is(err, contact.ErrInvalidEmail),
		errors.Is(err, contact.ErrEmptyFile),
		errors.Is(err, contact.ErrNoEmailColumn),
		errors.Is(err, tag.ErrInvalidName),
		errors.Is(err, template.ErrInvalidSyntax),
		errors.Is(err, template.ErrMissingContent),
		errors.Is(err, campaign.ErrMissingTemplate),
		errors.Is(err, suppression.ErrInvalidReason),
		errors.Is(err, suppression.ErrInvalidEmail),
		errors.Is(err, storage.ErrInvalidKey):
		return apperr.Validation(apperr.CodeValidation, "%s", err.Error())
	}
	return apperr.Internal(err)
}

// respondError writes err using the JSON error envelope.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, classify(err))
}
