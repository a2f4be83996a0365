package template

import (
	"context"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

// Repository defines the data access contract for templates.
type Repository interface {
	Get(ctx context.Context, ownerID, id string) (*domain.Template, error)
	List(ctx context.Context, ownerID string, filter ListFilter) ([]domain.Template, int, error)
	Create(ctx context.Context, t *domain.Template) error
	Update(ctx context.Context, ownerID, id string, u UpdateFields) error
	Delete(ctx context.Context, ownerID, id string) error
}

// ContactGetter looks up the contact a preview is rendered for.
type ContactGetter interface {
	Get(ctx context.Context, ownerID, id string) (*domain.Contact, error)
}

// ListFilter controls pagination and filtering for template lists.
type ListFilter struct {
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a template update.
// Nil fields are not applied.
type UpdateFields struct {
	Name     *string `json:"name" validate:"omitempty,max=200"`
	Subject  *string `json:"subject" validate:"omitempty,max=998"`
	HTMLBody *string `json:"html_body"`
}
