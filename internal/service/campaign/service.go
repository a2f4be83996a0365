package campaign

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo Repository
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name       string   `json:"name" validate:"required,max=200"`
	Subject    string   `json:"subject" validate:"max=998"`
	TemplateID string   `json:"template_id" validate:"required,max=64"`
	TargetTags []string `json:"target_tags" validate:"omitempty,dive,max=64"`
	SegmentID  string   `json:"segment_id" validate:"omitempty,max=64"`
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, ownerID, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, ownerID string, f ListFilter) ([]domain.Campaign, int, error) {
	if f.Status != "" && !domain.CampaignStatus(f.Status).Valid() {
		return nil, 0, fmt.Errorf("unknown status %q", f.Status)
	}
	return s.repo.List(ctx, ownerID, f)
}

// CountByStatus returns the owner's campaign counts keyed by status.
func (s *Service) CountByStatus(ctx context.Context, ownerID string) (map[string]int, error) {
	return s.repo.CountByStatus(ctx, ownerID)
}

// Create validates and persists a new campaign in draft status. An empty
// subject means the template's subject is used at send time.
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (*domain.Campaign, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if strings.TrimSpace(input.TemplateID) == "" {
		return nil, ErrMissingTemplate
	}

	c := &domain.Campaign{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Name:       name,
		Subject:    strings.TrimSpace(input.Subject),
		TemplateID: input.TemplateID,
		TargetTags: cleanTags(input.TargetTags),
		Status:     domain.CampaignDraft,
	}
	if seg := strings.TrimSpace(input.SegmentID); seg != "" {
		c.SegmentID = &seg
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update modifies mutable campaign fields. Only drafts can be edited;
// unschedule a scheduled campaign first.
func (s *Service) Update(ctx context.Context, ownerID, id string, u UpdateFields) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignDraft {
		return nil, ErrNotEditable
	}
	if u.TargetTags != nil {
		tags := cleanTags(*u.TargetTags)
		u.TargetTags = &tags
	}
	if u.TemplateID != nil && strings.TrimSpace(*u.TemplateID) == "" {
		return nil, ErrMissingTemplate
	}
	if err := s.repo.Update(ctx, ownerID, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ownerID, id)
}

// SetSchedule stores the schedule fields and target override of a campaign
// regardless of status. Used by the dispatch service.
func (s *Service) SetSchedule(ctx context.Context, ownerID, id string, u UpdateFields) error {
	if u.TargetTags != nil {
		tags := cleanTags(*u.TargetTags)
		u.TargetTags = &tags
	}
	return s.repo.Update(ctx, ownerID, id, u)
}

// Delete removes a campaign unless it is sending.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	c, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if c.Status == domain.CampaignSending {
		return ErrAlreadySending
	}
	return s.repo.Delete(ctx, ownerID, id)
}

// Transition moves a campaign to next if the status machine allows it and
// returns the campaign as it was before the move.
func (s *Service) Transition(ctx context.Context, ownerID, id string, next domain.CampaignStatus) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, next)
	}
	if err := s.repo.TransitionStatus(ctx, ownerID, id, c.Status, next); err != nil {
		return nil, err
	}
	log.Printf("[campaign.Service] Campaign %s: %s -> %s", id, c.Status, next)
	return c, nil
}

// BeginRun moves a campaign to sending on behalf of occurrence and returns
// it as it was before. Occurrence 0 is an immediate send and may start from
// draft or scheduled. A scheduled occurrence only starts from scheduled, or
// resumes a campaign that it moved to sending itself.
func (s *Service) BeginRun(ctx context.Context, ownerID, id string, occurrence int) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if c.Status == domain.CampaignSending {
		if occurrence > 0 && c.ActiveOccurrence == occurrence {
			return c, nil
		}
		return nil, fmt.Errorf("%w: %s is sending occurrence %d", ErrInvalidTransition, id, c.ActiveOccurrence)
	}
	if occurrence > 0 && c.Status != domain.CampaignScheduled {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, c.Status)
	}
	if !c.Status.CanTransition(domain.CampaignSending) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, domain.CampaignSending)
	}
	if err := s.repo.StartRun(ctx, ownerID, id, c.Status, occurrence); err != nil {
		return nil, err
	}
	log.Printf("[campaign.Service] Campaign %s: %s -> sending (occurrence %d)", id, c.Status, occurrence)
	return c, nil
}

// RecordRun stores the counters of a finished occurrence.
func (s *Service) RecordRun(ctx context.Context, ownerID, id string, r RunResult) error {
	return s.repo.RecordRun(ctx, ownerID, id, r)
}

func cleanTags(tags []string) []string {
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
