package contact

import (
	"context"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

// Repository defines the data access contract for contacts.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single contact. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, ownerID, id string) (*domain.Contact, error)

	// List returns contacts matching the filter, ordered by created_at DESC,
	// and the total number of matches.
	List(ctx context.Context, ownerID string, filter ListFilter) ([]domain.Contact, int, error)

	// Create inserts a contact. Returns ErrDuplicateEmail on conflict.
	Create(ctx context.Context, c *domain.Contact) error

	// Upsert inserts or updates by (owner, email). Tags are merged.
	// Reports whether a new row was created.
	Upsert(ctx context.Context, c *domain.Contact) (bool, error)

	// Update applies the non-nil fields.
	Update(ctx context.Context, ownerID, id string, u UpdateFields) error

	// Delete removes a contact. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, ownerID, id string) error

	// AddTags adds tag names not already present.
	AddTags(ctx context.Context, ownerID, id string, tags []string) error

	// RemoveTags removes the named tags.
	RemoveTags(ctx context.Context, ownerID, id string, tags []string) error

	// Resolve returns every contact matching the audience filter.
	Resolve(ctx context.Context, ownerID string, f Filter) ([]domain.Contact, error)

	// Count returns the total number of contacts for an owner.
	Count(ctx context.Context, ownerID string) (int, error)
}

// Filter selects a campaign audience. TagNames takes precedence over
// SegmentID; both empty selects every contact.
type Filter struct {
	TagNames  []string `json:"tag_names,omitempty"`
	SegmentID string   `json:"segment_id,omitempty"`
}

// ListFilter controls pagination and filtering for contact lists.
type ListFilter struct {
	Search string
	Tag    string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a contact update.
// Nil fields are not applied.
type UpdateFields struct {
	Email       *string
	DisplayName *string
	Tags        *[]string
	SegmentID   *string
}
