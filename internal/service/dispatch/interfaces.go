package dispatch

import (
	"context"
	"time"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/service/campaign"
	"github.com/ignite/campaign-dashboard/internal/service/contact"
)

// Campaigns is the subset of the campaign service dispatch needs.
type Campaigns interface {
	Get(ctx context.Context, ownerID, id string) (*domain.Campaign, error)
	Transition(ctx context.Context, ownerID, id string, next domain.CampaignStatus) (*domain.Campaign, error)

	// BeginRun moves the campaign to sending for occurrence and returns it
	// as it was before. Occurrence 0 is an immediate send.
	BeginRun(ctx context.Context, ownerID, id string, occurrence int) (*domain.Campaign, error)
	SetSchedule(ctx context.Context, ownerID, id string, u campaign.UpdateFields) error
	RecordRun(ctx context.Context, ownerID, id string, r campaign.RunResult) error
}

// Templates loads campaign content.
type Templates interface {
	Get(ctx context.Context, ownerID, id string) (*domain.Template, error)
}

// Contacts resolves a campaign audience.
type Contacts interface {
	Resolve(ctx context.Context, ownerID string, f contact.Filter) ([]domain.Contact, error)
}

// Suppressions answers whether addresses may be mailed.
type Suppressions interface {
	IsSuppressed(ctx context.Context, ownerID, email string) (bool, error)
	Filter(ctx context.Context, ownerID string, contacts []domain.Contact) ([]domain.Contact, []string, error)
}

// DeliveryLog records dispatch attempts. Implementations must not fail.
type DeliveryLog interface {
	Log(ctx context.Context, userID, action string, status domain.LogStatus, details any)
}

// Jobs stores scheduled occurrences.
type Jobs interface {
	Create(ctx context.Context, j *domain.CampaignJob) error
	CancelPending(ctx context.Context, ownerID, campaignID string) (int, error)

	// NextOccurrence returns one past the highest occurrence ever queued for
	// the campaign, so a rescheduled series never reuses recipient claims.
	NextOccurrence(ctx context.Context, campaignID string) (int, error)
}

// Recipients records per-recipient claims and outcomes.
type Recipients interface {
	// Claim reserves emails for the occurrence and returns the ones this
	// call won. Addresses already sent, or claimed within staleAfter, are
	// left out. Failed addresses and older claims may be claimed again.
	Claim(ctx context.Context, campaignID string, occurrence int, emails []string, staleAfter time.Duration) ([]string, error)

	// Mark records the outcome for claimed emails.
	Mark(ctx context.Context, campaignID string, occurrence int, emails []string, status domain.RecipientStatus, messageID string) error
}
