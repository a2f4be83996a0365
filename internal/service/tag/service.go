package tag

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

// Service implements tag business logic.
type Service struct {
	repo Repository
}

// NewService creates a tag service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput holds the fields for creating a tag.
type CreateInput struct {
	Name  string `json:"name" validate:"required,max=64"`
	Color string `json:"color" validate:"max=32"`
	Icon  string `json:"icon" validate:"max=64"`
}

// List returns the owner's tags.
func (s *Service) List(ctx context.Context, ownerID string) ([]domain.Tag, error) {
	return s.repo.List(ctx, ownerID)
}

// Create persists a new tag.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*domain.Tag, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	t := &domain.Tag{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Name:    name,
		Color:   strings.TrimSpace(in.Color),
		Icon:    strings.TrimSpace(in.Icon),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update changes a tag. Renaming to the current name is a no-op for the
// cascade.
func (s *Service) Update(ctx context.Context, ownerID, id string, u UpdateFields) (*domain.Tag, error) {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, ErrInvalidName
		}
		u.Name = &name
	}
	if err := s.repo.Update(ctx, ownerID, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ownerID, id)
}

// Delete removes a tag.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.repo.Delete(ctx, ownerID, id)
}
