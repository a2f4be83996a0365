package tag

import (
	"context"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

// Repository defines the data access contract for tags.
// Implementations must be safe for concurrent use.
type Repository interface {
	// List returns all tags of an owner ordered by name.
	List(ctx context.Context, ownerID string) ([]domain.Tag, error)

	// Get returns a single tag. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, ownerID, id string) (*domain.Tag, error)

	// Create inserts a tag. Returns ErrDuplicateName on conflict.
	Create(ctx context.Context, t *domain.Tag) error

	// Update applies the non-nil fields. A name change is cascaded to the
	// tag arrays of the owner's contacts in the same transaction.
	Update(ctx context.Context, ownerID, id string, u UpdateFields) error

	// Delete removes a tag and strips its name from the owner's contacts.
	Delete(ctx context.Context, ownerID, id string) error
}

// UpdateFields holds the mutable fields for a tag update.
// Nil fields are not applied.
type UpdateFields struct {
	Name  *string `json:"name" validate:"omitempty,max=64"`
	Color *string `json:"color" validate:"omitempty,max=32"`
	Icon  *string `json:"icon" validate:"omitempty,max=64"`
}
