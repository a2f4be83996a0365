package contact

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

// Service implements contact business logic. It is safe for concurrent use
// if the underlying repository is.
type Service struct {
	repo Repository
}

// NewService creates a contact service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput holds the fields for creating a contact.
type CreateInput struct {
	Email       string   `json:"email" validate:"required,email,max=320"`
	DisplayName string   `json:"display_name" validate:"max=200"`
	Tags        []string `json:"tags" validate:"omitempty,dive,required,max=64"`
	SegmentID   string   `json:"segment_id" validate:"omitempty,max=64"`
}

// Get returns a single contact.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*domain.Contact, error) {
	return s.repo.Get(ctx, ownerID, id)
}

// List returns contacts matching the filter.
func (s *Service) List(ctx context.Context, ownerID string, f ListFilter) ([]domain.Contact, int, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.repo.List(ctx, ownerID, f)
}

// Count returns the number of contacts the owner has.
func (s *Service) Count(ctx context.Context, ownerID string) (int, error) {
	return s.repo.Count(ctx, ownerID)
}

// Create validates and persists a new contact.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*domain.Contact, error) {
	email := domain.NormalizeEmail(in.Email)
	if !domain.ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	c := &domain.Contact{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Email:       email,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Tags:        NormalizeTags(in.Tags),
	}
	if seg := strings.TrimSpace(in.SegmentID); seg != "" {
		c.SegmentID = &seg
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update modifies a contact. A new email is validated and normalized.
func (s *Service) Update(ctx context.Context, ownerID, id string, u UpdateFields) (*domain.Contact, error) {
	if u.Email != nil {
		email := domain.NormalizeEmail(*u.Email)
		if !domain.ValidEmail(email) {
			return nil, ErrInvalidEmail
		}
		u.Email = &email
	}
	if u.Tags != nil {
		tags := NormalizeTags(*u.Tags)
		u.Tags = &tags
	}
	if u.DisplayName != nil {
		name := strings.TrimSpace(*u.DisplayName)
		u.DisplayName = &name
	}
	if err := s.repo.Update(ctx, ownerID, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ownerID, id)
}

// Delete removes a contact.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.repo.Delete(ctx, ownerID, id)
}

// AddTags attaches tags to a contact and returns the updated contact.
func (s *Service) AddTags(ctx context.Context, ownerID, id string, tags []string) (*domain.Contact, error) {
	tags = NormalizeTags(tags)
	if len(tags) == 0 {
		return nil, fmt.Errorf("at least one tag is required")
	}
	if err := s.repo.AddTags(ctx, ownerID, id, tags); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ownerID, id)
}

// RemoveTags detaches tags from a contact and returns the updated contact.
func (s *Service) RemoveTags(ctx context.Context, ownerID, id string, tags []string) (*domain.Contact, error) {
	tags = NormalizeTags(tags)
	if len(tags) == 0 {
		return nil, fmt.Errorf("at least one tag is required")
	}
	if err := s.repo.RemoveTags(ctx, ownerID, id, tags); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ownerID, id)
}

// Resolve returns the campaign audience for f. Blank tag names are ignored,
// so a filter of only blanks behaves like no filter.
func (s *Service) Resolve(ctx context.Context, ownerID string, f Filter) ([]domain.Contact, error) {
	f.TagNames = NormalizeTags(f.TagNames)
	f.SegmentID = strings.TrimSpace(f.SegmentID)
	contacts, err := s.repo.Resolve(ctx, ownerID, f)
	if err != nil {
		return nil, fmt.Errorf("resolve contacts: %w", err)
	}
	return contacts, nil
}

// NormalizeTags trims names and drops blanks and duplicates, keeping order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
