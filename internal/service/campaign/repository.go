package campaign

import (
	"context"
	"time"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, ownerID, id string) (*domain.Campaign, error)

	// List returns campaigns matching the given filter, ordered by created_at DESC.
	List(ctx context.Context, ownerID string, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign.
	Create(ctx context.Context, c *domain.Campaign) error

	// Update modifies a campaign. Only non-nil fields in the update are applied.
	Update(ctx context.Context, ownerID, id string, u UpdateFields) error

	// Delete removes a campaign that is not currently sending.
	Delete(ctx context.Context, ownerID, id string) error

	// TransitionStatus moves a campaign from one status to another. It
	// returns ErrInvalidTransition when the stored status is no longer from,
	// so two racing writers cannot both win.
	TransitionStatus(ctx context.Context, ownerID, id string, from, to domain.CampaignStatus) error

	// StartRun moves a campaign from from to sending and stores occurrence
	// as the run that owns it. It fails like TransitionStatus when the
	// stored status is no longer from.
	StartRun(ctx context.Context, ownerID, id string, from domain.CampaignStatus, occurrence int) error

	// RecordRun adds a finished run's counters to the campaign.
	RecordRun(ctx context.Context, ownerID, id string, r RunResult) error

	// CountByStatus returns the number of campaigns per status.
	CountByStatus(ctx context.Context, ownerID string) (map[string]int, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Name           *string    `json:"name" validate:"omitempty,max=200"`
	Subject        *string    `json:"subject" validate:"omitempty,max=998"`
	TemplateID     *string    `json:"template_id" validate:"omitempty,max=64"`
	TargetTags     *[]string  `json:"target_tags" validate:"omitempty,dive,max=64"`
	SegmentID      *string    `json:"segment_id" validate:"omitempty,max=64"`
	ScheduledAt    *time.Time `json:"-"`
	RepeatInterval *string    `json:"-"`
	RepeatCount    *int       `json:"-"`
}

// RunResult is the outcome of one campaign occurrence.
type RunResult struct {
	Sent      int
	Failed    int
	LastError string
}
