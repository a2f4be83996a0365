package suppression

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

// Service implements suppression business logic. It is safe for concurrent use.
type Service struct {
	repo Repository
}

// NewService creates a suppression service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// IsSuppressed checks whether an email address should be blocked from sending.
func (s *Service) IsSuppressed(ctx context.Context, ownerID, email string) (bool, error) {
	return s.repo.IsSuppressed(ctx, ownerID, domain.NormalizeEmail(email))
}

// Filter splits contacts into those that may be mailed and the addresses
// that were dropped because they are suppressed.
func (s *Service) Filter(ctx context.Context, ownerID string, contacts []domain.Contact) ([]domain.Contact, []string, error) {
	if len(contacts) == 0 {
		return contacts, nil, nil
	}
	emails := make([]string, len(contacts))
	for i, c := range contacts {
		emails[i] = domain.NormalizeEmail(c.Email)
	}
	blocked, err := s.repo.SuppressedAmong(ctx, ownerID, emails)
	if err != nil {
		return nil, nil, err
	}
	if len(blocked) == 0 {
		return contacts, nil, nil
	}
	kept := make([]domain.Contact, 0, len(contacts))
	var dropped []string
	for i, c := range contacts {
		if blocked[emails[i]] {
			dropped = append(dropped, emails[i])
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped, nil
}

// Suppress adds an email to the suppression list. Idempotent: if the
// email is already suppressed, the existing record is preserved.
func (s *Service) Suppress(ctx context.Context, ownerID, email string, reason domain.SuppressionReason) (*domain.Suppression, error) {
	email = domain.NormalizeEmail(email)
	if !domain.ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !reason.Valid() {
		return nil, ErrInvalidReason
	}

	entry := &domain.Suppression{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Email:   email,
		Reason:  reason,
	}
	if err := s.repo.Suppress(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Remove deletes a suppression entry.
func (s *Service) Remove(ctx context.Context, ownerID, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}
	return s.repo.Remove(ctx, ownerID, email)
}

// List returns suppression entries matching the given filter.
func (s *Service) List(ctx context.Context, ownerID string, filter ListFilter) ([]domain.Suppression, int, error) {
	if filter.Reason != "" && !domain.SuppressionReason(filter.Reason).Valid() {
		return nil, 0, ErrInvalidReason
	}
	return s.repo.List(ctx, ownerID, filter)
}

// Count returns the total number of suppressed emails for an owner.
func (s *Service) Count(ctx context.Context, ownerID string) (int, error) {
	return s.repo.Count(ctx, ownerID)
}

// Stats returns aggregate counts grouped by reason.
type Stats struct {
	Total    int            `json:"total"`
	ByReason map[string]int `json:"by_reason"`
}

// GetStats computes suppression statistics for the dashboard.
func (s *Service) GetStats(ctx context.Context, ownerID string) (*Stats, error) {
	byReason, err := s.repo.CountByReason(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	stats := &Stats{ByReason: byReason}
	for _, n := range byReason {
		stats.Total += n
	}
	return stats, nil
}
