package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/metrics"
	"github.com/ignite/campaign-dashboard/internal/pkg/apperr"
	"github.com/ignite/campaign-dashboard/internal/pkg/logger"
)

// DefaultDailyQuota is the number of single sends a user gets per day.
const DefaultDailyQuota = 100

// statsDays is the length of the dashboard's daily series.
const statsDays = 7

const appendTimeout = 5 * time.Second

// Service writes and reads the delivery log.
type Service struct {
	repo         Repository
	metrics      *metrics.Metrics
	quota        int
	loc          *time.Location
	contacts     Counter
	suppressions Counter
	campaigns    CampaignCounter
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records log failures on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithQuota sets the daily single-send cap and the time zone whose midnight
// resets it. limit <= 0 disables the cap.
func WithQuota(limit int, loc *time.Location) Option {
	return func(s *Service) {
		s.quota = limit
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithStatsSources supplies the counters shown next to the log stats. Any
// of them may be nil.
func WithStatsSources(contacts, suppressions Counter, campaigns CampaignCounter) Option {
	return func(s *Service) {
		s.contacts = contacts
		s.suppressions = suppressions
		s.campaigns = campaigns
	}
}

// NewService creates a delivery log service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, quota: DefaultDailyQuota, loc: time.UTC}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Location returns the time zone used for day boundaries.
func (s *Service) Location() *time.Location { return s.loc }

// Log appends one entry. details is stored as JSON. Failures are logged and
// swallowed, and the write outlives a cancelled request context.
func (s *Service) Log(ctx context.Context, userID, action string, status domain.LogStatus, details any) {
	raw, err := json.Marshal(details)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
	}
	entry := &domain.DeliveryLogEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Status:    status,
		Details:   raw,
		CreatedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()
	if err := s.repo.Append(ctx, entry); err != nil {
		s.metrics.RecordLogFailure()
		logger.Error("delivery log write failed",
			"user_id", userID, "action", action, "status", string(status),
			"details", string(raw), "error", err)
	}
}

// List returns a page of the user's log.
func (s *Service) List(ctx context.Context, userID string, f ListFilter) ([]domain.DeliveryLogEntry, int, error) {
	if f.Status != "" && f.Status != string(domain.LogSuccess) && f.Status != string(domain.LogError) {
		return nil, 0, apperr.Validation("", "status must be success or error")
	}
	return s.repo.List(ctx, userID, f)
}

// CountSuccessSince counts the user's successful entries for action since t.
func (s *Service) CountSuccessSince(ctx context.Context, userID, action string, t time.Time) (int, error) {
	return s.repo.CountSince(ctx, userID, action, domain.LogSuccess, t)
}

// StartOfDay returns local midnight of the day containing now.
func (s *Service) StartOfDay(now time.Time) time.Time {
	local := now.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}

// CheckQuota returns how many single sends the user has left today. When the
// cap is reached it returns a rate-limit error whose RetryAfter runs to the
// next local midnight. A disabled cap reports -1.
func (s *Service) CheckQuota(ctx context.Context, userID string, now time.Time) (int, error) {
	if s.quota <= 0 {
		return -1, nil
	}
	start := s.StartOfDay(now)
	n, err := s.CountSuccessSince(ctx, userID, domain.ActionSendEmail, start)
	if err != nil {
		return 0, fmt.Errorf("count daily sends: %w", err)
	}
	if n >= s.quota {
		next := start.AddDate(0, 0, 1)
		return 0, apperr.RateLimited(apperr.CodeDailyQuota,
			fmt.Sprintf("daily limit of %d emails reached", s.quota), next.Sub(now))
	}
	return s.quota - n, nil
}

// Stats builds the dashboard summary as of now.
func (s *Service) Stats(ctx context.Context, userID string, now time.Time) (*domain.DeliveryStats, error) {
	totals, err := s.repo.Totals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("log totals: %w", err)
	}
	stats := &domain.DeliveryStats{
		ByAction:          map[string]int{},
		CampaignsByStatus: map[string]int{},
		DailyQuota:        s.quota,
	}
	for action, byStatus := range totals {
		for status, n := range byStatus {
			stats.ByAction[action] += n
			switch status {
			case domain.LogSuccess:
				stats.TotalSuccess += n
			case domain.LogError:
				stats.TotalError += n
			}
		}
	}

	start := s.StartOfDay(now)
	if stats.TodaySuccess, err = s.CountSuccessSince(ctx, userID, domain.ActionSendEmail, start); err != nil {
		return nil, fmt.Errorf("today's sends: %w", err)
	}
	if s.quota > 0 {
		stats.DailyQuotaRemaining = max(s.quota-stats.TodaySuccess, 0)
	}

	first := start.AddDate(0, 0, -(statsDays - 1))
	days, err := s.repo.Daily(ctx, userID, first, s.loc.String())
	if err != nil {
		return nil, fmt.Errorf("daily series: %w", err)
	}
	stats.Daily = fillDays(days, first, statsDays)

	if s.campaigns != nil {
		if stats.CampaignsByStatus, err = s.campaigns.CountByStatus(ctx, userID); err != nil {
			return nil, fmt.Errorf("campaign counts: %w", err)
		}
	}
	if s.contacts != nil {
		if stats.ContactCount, err = s.contacts.Count(ctx, userID); err != nil {
			return nil, fmt.Errorf("contact count: %w", err)
		}
	}
	if s.suppressions != nil {
		if stats.SuppressionCount, err = s.suppressions.Count(ctx, userID); err != nil {
			return nil, fmt.Errorf("suppression count: %w", err)
		}
	}
	return stats, nil
}

// fillDays returns exactly n consecutive days starting at first, taking
// counts from days where present.
func fillDays(days []domain.DailyCount, first time.Time, n int) []domain.DailyCount {
	byDay := make(map[string]domain.DailyCount, len(days))
	for _, d := range days {
		byDay[d.Day] = d
	}
	out := make([]domain.DailyCount, n)
	for i := range out {
		key := first.AddDate(0, 0, i).Format(time.DateOnly)
		d, ok := byDay[key]
		if !ok {
			d = domain.DailyCount{Day: key}
		}
		out[i] = d
	}
	return out
}
