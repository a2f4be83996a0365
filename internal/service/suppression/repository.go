package suppression

import (
	"context"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

// Repository defines the data access contract for the suppression list.
type Repository interface {
	// IsSuppressed returns true if the email is on the owner's suppression list.
	IsSuppressed(ctx context.Context, ownerID, email string) (bool, error)

	// SuppressedAmong returns the subset of emails that are suppressed.
	SuppressedAmong(ctx context.Context, ownerID string, emails []string) (map[string]bool, error)

	// Suppress adds an email to the suppression list. If it already exists,
	// the existing record is preserved (idempotent).
	Suppress(ctx context.Context, s *domain.Suppression) error

	// Remove deletes a suppression entry. Returns ErrNotFound if it doesn't exist.
	Remove(ctx context.Context, ownerID, email string) error

	// List returns suppression entries matching the filter.
	List(ctx context.Context, ownerID string, filter ListFilter) ([]domain.Suppression, int, error)

	// Count returns the total number of suppressed emails for an owner.
	Count(ctx context.Context, ownerID string) (int, error)

	// CountByReason returns entry counts keyed by reason.
	CountByReason(ctx context.Context, ownerID string) (map[string]int, error)
}

// ListFilter controls pagination and filtering for suppression lists.
type ListFilter struct {
	Reason string
	Search string
	Limit  int
	Offset int
}
