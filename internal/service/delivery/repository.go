package delivery

import (
	"context"
	"time"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

// Repository defines the data access contract for the delivery log.
type Repository interface {
	// Append inserts one entry.
	Append(ctx context.Context, e *domain.DeliveryLogEntry) error

	// List returns entries matching the filter, newest first.
	List(ctx context.Context, userID string, filter ListFilter) ([]domain.DeliveryLogEntry, int, error)

	// CountSince counts entries with the given action and status created at
	// or after since.
	CountSince(ctx context.Context, userID, action string, status domain.LogStatus, since time.Time) (int, error)

	// Totals returns entry counts keyed by action, then status.
	Totals(ctx context.Context, userID string) (map[string]map[domain.LogStatus]int, error)

	// Daily returns per-day success and error counts since the given time,
	// with days cut at midnight in the named IANA time zone. Days without
	// entries are omitted.
	Daily(ctx context.Context, userID string, since time.Time, tz string) ([]domain.DailyCount, error)
}

// ListFilter controls pagination and filtering for the log page.
type ListFilter struct {
	Action string
	Status string
	Limit  int
	Offset int
}

// Counter is satisfied by the contact and suppression services.
type Counter interface {
	Count(ctx context.Context, ownerID string) (int, error)
}

// CampaignCounter is satisfied by the campaign service.
type CampaignCounter interface {
	CountByStatus(ctx context.Context, ownerID string) (map[string]int, error)
}
