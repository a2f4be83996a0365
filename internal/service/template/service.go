package template

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/render"
)

// Service implements template business logic.
type Service struct {
	repo     Repository
	contacts ContactGetter
}

// NewService creates a template service. contacts may be nil, in which case
// previews only accept sample variables.
func NewService(repo Repository, contacts ContactGetter) *Service {
	return &Service{repo: repo, contacts: contacts}
}

// CreateInput holds the fields for creating a template.
type CreateInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Subject  string `json:"subject" validate:"required,max=998"`
	HTMLBody string `json:"html_body" validate:"required"`
}

// PreviewInput selects what a template is rendered against. Variables
// override the contact-derived values.
type PreviewInput struct {
	ContactID string            `json:"contact_id"`
	Variables map[string]string `json:"variables"`
}

// Preview is a rendered template plus the placeholders nothing filled.
type Preview struct {
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Missing []string `json:"missing"`
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (*domain.Template, error) {
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) List(ctx context.Context, ownerID string, f ListFilter) ([]domain.Template, int, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.repo.List(ctx, ownerID, f)
}

// Create validates the template syntax and persists it.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*domain.Template, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.HTMLBody) == "" {
		return nil, ErrMissingContent
	}
	if err := checkSyntax(in.Subject, in.HTMLBody); err != nil {
		return nil, err
	}
	t := &domain.Template{
		ID:       uuid.New().String(),
		OwnerID:  ownerID,
		Name:     name,
		Subject:  in.Subject,
		HTMLBody: in.HTMLBody,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update validates changed content and applies it.
func (s *Service) Update(ctx context.Context, ownerID, id string, u UpdateFields) (*domain.Template, error) {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, ErrMissingContent
		}
		u.Name = &name
	}
	var subject, body string
	if u.Subject != nil {
		subject = *u.Subject
	}
	if u.HTMLBody != nil {
		body = *u.HTMLBody
	}
	if err := checkSyntax(subject, body); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, ownerID, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.repo.Delete(ctx, ownerID, id)
}

// Preview renders a stored template for a contact and/or sample values.
func (s *Service) Preview(ctx context.Context, ownerID, id string, in PreviewInput) (*Preview, error) {
	t, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	vars := map[string]string{}
	if in.ContactID != "" {
		if s.contacts == nil {
			return nil, fmt.Errorf("contact previews are not available")
		}
		c, err := s.contacts.Get(ctx, ownerID, in.ContactID)
		if err != nil {
			return nil, err
		}
		vars = render.ContactVariables(*c, nil)
	}
	for k, v := range in.Variables {
		vars[k] = v
	}

	p := &Preview{
		Subject: render.Render(t.Subject, vars),
		HTML:    render.Render(t.HTMLBody, vars),
		Missing: render.Missing(t.Subject+"\n"+t.HTMLBody, vars),
	}
	if p.Missing == nil {
		p.Missing = []string{}
	}
	return p, nil
}

func checkSyntax(parts ...string) error {
	for _, p := range parts {
		if p == "" {
			continue
		}
		if err := render.Validate(p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSyntax, err)
		}
	}
	return nil
}
