package delivery_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/metrics"
	"github.com/ignite/campaign-dashboard/internal/pkg/apperr"
	"github.com/ignite/campaign-dashboard/internal/pkg/logger"
	"github.com/ignite/campaign-dashboard/internal/service/delivery"
)

// memRepo is an in-memory delivery log for unit testing.
type memRepo struct {
	mu      sync.Mutex
	entries []domain.DeliveryLogEntry
	fail    error
}

func (m *memRepo) Append(ctx context.Context, e *domain.DeliveryLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memRepo) List(_ context.Context, userID string, f delivery.ListFilter) ([]domain.DeliveryLogEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DeliveryLogEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.UserID != userID || (f.Action != "" && e.Action != f.Action) || (f.Status != "" && string(e.Status) != f.Status) {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *memRepo) CountSince(_ context.Context, userID, action string, status domain.LogStatus, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.UserID == userID && e.Action == action && e.Status == status && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) Totals(_ context.Context, userID string) (map[string]map[domain.LogStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]map[domain.LogStatus]int{}
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if out[e.Action] == nil {
			out[e.Action] = map[domain.LogStatus]int{}
		}
		out[e.Action][e.Status]++
	}
	return out, nil
}

func (m *memRepo) Daily(_ context.Context, userID string, since time.Time, tz string) ([]domain.DailyCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc := since.Location()
	byDay := map[string]*domain.DailyCount{}
	var order []string
	for _, e := range m.entries {
		if e.UserID != userID || e.CreatedAt.Before(since) {
			continue
		}
		day := e.CreatedAt.In(loc).Format(time.DateOnly)
		d, ok := byDay[day]
		if !ok {
			d = &domain.DailyCount{Day: day}
			byDay[day] = d
			order = append(order, day)
		}
		if e.Status == domain.LogSuccess {
			d.Success++
		} else {
			d.Error++
		}
	}
	var out []domain.DailyCount
	for _, day := range order {
		out = append(out, *byDay[day])
	}
	return out, nil
}

func (m *memRepo) add(userID, action string, status domain.LogStatus, at time.Time) {
	m.entries = append(m.entries, domain.DeliveryLogEntry{UserID: userID, Action: action, Status: status, CreatedAt: at})
}

type fixedCounter int

func (c fixedCounter) Count(context.Context, string) (int, error) { return int(c), nil }

type campaignCounts map[string]int

func (c campaignCounts) CountByStatus(context.Context, string) (map[string]int, error) { return c, nil }

const testUser = "user-1"

func TestLogAppendsEntry(t *testing.T) {
	repo := &memRepo{}
	svc := delivery.NewService(repo)

	svc.Log(context.Background(), testUser, domain.ActionSendEmail, domain.LogSuccess, map[string]string{"messageId": "m-1"})

	require.Len(t, repo.entries, 1)
	e := repo.entries[0]
	assert.Equal(t, domain.ActionSendEmail, e.Action)
	assert.Equal(t, domain.LogSuccess, e.Status)
	assert.JSONEq(t, `{"messageId":"m-1"}`, string(e.Details))
	assert.NotEmpty(t, e.ID)
}

func TestLogSurvivesCancelledContext(t *testing.T) {
	repo := &memRepo{}
	svc := delivery.NewService(repo)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc.Log(ctx, testUser, domain.ActionSendEmail, domain.LogError, nil)
	assert.Len(t, repo.entries, 1)
}

func TestLogSwallowsWriteFailure(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	m := metrics.New()
	svc := delivery.NewService(&memRepo{fail: errors.New("db down")}, delivery.WithMetrics(m))

	assert.NotPanics(t, func() {
		svc.Log(context.Background(), testUser, domain.ActionCampaignBatch, domain.LogError, map[string]any{"batch": 1})
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LogWriteFailures))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "delivery log write failed", line["msg"])
}

func TestCheckQuota(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	repo := &memRepo{}
	svc := delivery.NewService(repo, delivery.WithQuota(3, loc))

	// 23:30 local on the 14th is 02:30 UTC on the 15th.
	now := time.Date(2026, 3, 14, 23, 30, 0, 0, loc)
	yesterday := time.Date(2026, 3, 13, 22, 0, 0, 0, loc)
	repo.add(testUser, domain.ActionSendEmail, domain.LogSuccess, yesterday)
	repo.add(testUser, domain.ActionSendEmail, domain.LogError, now.Add(-time.Hour))
	repo.add(testUser, domain.ActionSendCampaign, domain.LogSuccess, now.Add(-time.Hour))
	repo.add("other", domain.ActionSendEmail, domain.LogSuccess, now.Add(-time.Hour))

	left, err := svc.CheckQuota(context.Background(), testUser, now)
	require.NoError(t, err)
	assert.Equal(t, 3, left)

	for i := 0; i < 3; i++ {
		repo.add(testUser, domain.ActionSendEmail, domain.LogSuccess, now.Add(-time.Minute))
	}
	_, err = svc.CheckQuota(context.Background(), testUser, now)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeDailyQuota, ae.Code)
	assert.Equal(t, 30*time.Minute, ae.RetryAfter)

	// A new local day resets the count.
	left, err = svc.CheckQuota(context.Background(), testUser, now.Add(31*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, left)
}

func TestCheckQuotaDisabled(t *testing.T) {
	svc := delivery.NewService(&memRepo{}, delivery.WithQuota(0, nil))
	left, err := svc.CheckQuota(context.Background(), testUser, time.Now())
	require.NoError(t, err)
	assert.Equal(t, -1, left)
}

func TestStats(t *testing.T) {
	repo := &memRepo{}
	svc := delivery.NewService(repo,
		delivery.WithQuota(10, time.UTC),
		delivery.WithStatsSources(fixedCounter(5), fixedCounter(2), campaignCounts{"draft": 1, "sent": 3}),
	)
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	repo.add(testUser, domain.ActionSendEmail, domain.LogSuccess, now.Add(-time.Hour))
	repo.add(testUser, domain.ActionSendEmail, domain.LogSuccess, now.Add(-2*time.Hour))
	repo.add(testUser, domain.ActionSendEmail, domain.LogError, now.Add(-48*time.Hour))
	repo.add(testUser, domain.ActionCampaignBatch, domain.LogSuccess, now.Add(-30*24*time.Hour))

	stats, err := svc.Stats(context.Background(), testUser, now)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalSuccess)
	assert.Equal(t, 1, stats.TotalError)
	assert.Equal(t, 2, stats.TodaySuccess)
	assert.Equal(t, 8, stats.DailyQuotaRemaining)
	assert.Equal(t, map[string]int{"send_email": 3, "campaign_batch": 1}, stats.ByAction)
	assert.Equal(t, 5, stats.ContactCount)
	assert.Equal(t, 2, stats.SuppressionCount)
	assert.Equal(t, 3, stats.CampaignsByStatus["sent"])

	require.Len(t, stats.Daily, 7)
	assert.Equal(t, "2026-05-14", stats.Daily[0].Day)
	assert.Equal(t, domain.DailyCount{Day: "2026-05-18", Error: 1}, stats.Daily[4])
	assert.Equal(t, domain.DailyCount{Day: "2026-05-20", Success: 2}, stats.Daily[6])
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc := delivery.NewService(&memRepo{})
	_, _, err := svc.List(context.Background(), testUser, delivery.ListFilter{Status: "maybe"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
