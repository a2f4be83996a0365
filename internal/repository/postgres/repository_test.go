package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/service/campaign"
	"github.com/ignite/campaign-dashboard/internal/service/contact"
	"github.com/ignite/campaign-dashboard/internal/service/suppression"
	"github.com/ignite/campaign-dashboard/internal/service/tag"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}

var contactCols = []string{"id", "owner_id", "email", "display_name", "tags", "segment_id", "created_at", "updated_at"}

func TestContactRepo_GetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .+ FROM contacts WHERE id = \\$1 AND owner_id = \\$2").
		WithArgs("c-1", "user-1").
		WillReturnError(sql.ErrNoRows)

	_, err := NewContactRepo(db).Get(context.Background(), "user-1", "c-1")
	assert.ErrorIs(t, err, contact.ErrNotFound)
}

func TestContactRepo_CreateDuplicate(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO contacts").
		WillReturnError(&pq.Error{Code: "23505"})

	err := NewContactRepo(db).Create(context.Background(), &domain.Contact{OwnerID: "user-1", Email: "a@x.com"})
	assert.ErrorIs(t, err, contact.ErrDuplicateEmail)
}

func TestContactRepo_ResolveByTags(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("AND tags && $2::text[]")).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(contactCols).
			AddRow("c-1", "user-1", "ana@x.com", "Ana", "{vip,lead}", nil, now, now).
			AddRow("c-2", "user-1", "bia@x.com", "Bia", "{vip}", "seg-1", now, now))

	got, err := NewContactRepo(db).Resolve(context.Background(), "user-1", contact.Filter{TagNames: []string{"vip"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"vip", "lead"}, got[0].Tags)
	assert.Nil(t, got[0].SegmentID)
	require.NotNil(t, got[1].SegmentID)
	assert.Equal(t, "seg-1", *got[1].SegmentID)
}

func TestContactRepo_ResolveAll(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .+ FROM contacts WHERE owner_id = \\$1 ORDER BY created_at, id").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(contactCols))

	got, err := NewContactRepo(db).Resolve(context.Background(), "user-1", contact.Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestContactRepo_Upsert(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("ON CONFLICT \\(owner_id, email\\) DO UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))

	created, err := NewContactRepo(db).Upsert(context.Background(), &domain.Contact{OwnerID: "user-1", Email: "a@x.com"})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestContactRepo_UpdateBuildsSet(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	name := "Ana Silva"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE contacts SET display_name = $1, updated_at = NOW() WHERE id = $2 AND owner_id = $3")).
		WithArgs(name, "c-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewContactRepo(db).Update(context.Background(), "user-1", "c-1", contact.UpdateFields{DisplayName: &name})
	assert.ErrorIs(t, err, contact.ErrNotFound)
}

func TestTagRepo_RenameCascades(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	newName := "customers"
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM tags WHERE id = \\$1 AND owner_id = \\$2 FOR UPDATE").
		WithArgs("t-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "color", "icon", "created_at"}).
			AddRow("t-1", "user-1", "clients", "", "", time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tags SET name = $1 WHERE id = $2 AND owner_id = $3")).
		WithArgs(newName, "t-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("array_replace(tags, $2, $3)")).
		WithArgs("user-1", "clients", newName).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, NewTagRepo(db).Update(context.Background(), "user-1", "t-1", tag.UpdateFields{Name: &newName}))
}

func TestTagRepo_DeleteStripsContacts(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM tags").
		WithArgs("t-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("vip"))
	mock.ExpectExec(regexp.QuoteMeta("array_remove(tags, $2)")).
		WithArgs("user-1", "vip").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, NewTagRepo(db).Delete(context.Background(), "user-1", "t-1"))
}

func TestTagRepo_DeleteNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM tags").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	assert.ErrorIs(t, NewTagRepo(db).Delete(context.Background(), "user-1", "t-1"), tag.ErrNotFound)
}

func TestCampaignRepo_TransitionStatusIsCompareAndSet(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE campaigns SET").
		WithArgs(domain.CampaignSending, "camp-1", "user-1", domain.CampaignDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaigns SET").
		WithArgs(domain.CampaignSending, "camp-1", "user-1", domain.CampaignDraft).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCampaignRepo(db)
	ctx := context.Background()
	require.NoError(t, repo.TransitionStatus(ctx, "user-1", "camp-1", domain.CampaignDraft, domain.CampaignSending))

	err := repo.TransitionStatus(ctx, "user-1", "camp-1", domain.CampaignDraft, domain.CampaignSending)
	assert.ErrorIs(t, err, campaign.ErrInvalidTransition)
}

func TestCampaignRepo_StartRunRecordsOccurrence(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("active_occurrence = $1")).
		WithArgs(4, "camp-1", "user-1", domain.CampaignScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("active_occurrence = $1")).
		WithArgs(0, "camp-1", "user-1", domain.CampaignScheduled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCampaignRepo(db)
	ctx := context.Background()
	require.NoError(t, repo.StartRun(ctx, "user-1", "camp-1", domain.CampaignScheduled, 4))

	err := repo.StartRun(ctx, "user-1", "camp-1", domain.CampaignScheduled, 0)
	assert.ErrorIs(t, err, campaign.ErrInvalidTransition)
}

func TestCampaignRepo_Get(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	cols := []string{"id", "owner_id", "name", "subject", "template_id", "target_tags", "segment_id",
		"status", "scheduled_at", "repeat_interval", "repeat_count", "active_occurrence", "sent_count", "failed_count",
		"last_error", "started_at", "completed_at", "created_at", "updated_at"}
	mock.ExpectQuery("SELECT .+ FROM campaigns WHERE id = \\$1 AND owner_id = \\$2").
		WithArgs("camp-1", "user-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"camp-1", "user-1", "Launch", "Hi", "tpl-1", "{vip}", nil,
			"scheduled", now, "weekly", 4, 2, 0, 0,
			"", nil, nil, now, now))

	c, err := NewCampaignRepo(db).Get(context.Background(), "user-1", "camp-1")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignScheduled, c.Status)
	assert.Equal(t, []string{"vip"}, c.TargetTags)
	require.NotNil(t, c.ScheduledAt)
	assert.Nil(t, c.StartedAt)
	assert.Equal(t, 4, c.RepeatCount)
	assert.Equal(t, 2, c.ActiveOccurrence)
}

func TestCampaignRepo_CountByStatus(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("GROUP BY status").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("draft", 2).AddRow("sent", 5))

	got, err := NewCampaignRepo(db).CountByStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"draft": 2, "sent": 5}, got)
}

func TestJobRepo_ClaimDue(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lease := now.Add(10 * time.Minute)
	planned := now.Add(-time.Hour)
	cols := []string{"id", "campaign_id", "owner_id", "run_at", "scheduled_for", "repeat_interval", "remaining_runs",
		"occurrence", "status", "attempts", "last_error", "lease_until", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs(now, lease, 10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("job-1", "camp-1", "user-1", now, planned, "daily", 3, 1, "running", 1, "", lease, now))

	jobs, err := NewJobRepo(db).ClaimDue(context.Background(), now, 10*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobRunning, jobs[0].Status)
	assert.True(t, jobs[0].HasNext())
	require.NotNil(t, jobs[0].LeaseUntil)
	assert.True(t, jobs[0].LeaseUntil.Equal(lease))
	assert.True(t, jobs[0].NominalTime().Equal(planned))
}

func TestJobRepo_CreateDefaultsScheduledFor(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	runAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO campaign_jobs").
		WithArgs(sqlmock.AnyArg(), "camp-1", "user-1", runAt, runAt, "daily", 3, 1, domain.JobPending).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(runAt))

	j := &domain.CampaignJob{CampaignID: "camp-1", OwnerID: "user-1", RunAt: runAt, RepeatInterval: "daily", RemainingRuns: 3, Occurrence: 1}
	require.NoError(t, NewJobRepo(db).Create(context.Background(), j))
	assert.True(t, j.ScheduledFor.Equal(runAt))
}

func TestJobRepo_NextOccurrence(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(occurrence), 0) + 1")).
		WithArgs("camp-1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))

	n, err := NewJobRepo(db).NextOccurrence(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRecipientRepo_ClaimKeepsCallerOrder(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE campaign_recipients.status = 'failed'")).
		WithArgs("camp-1", 2, sqlmock.AnyArg(), float64(600)).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("c@x.com").AddRow("a@x.com"))

	got, err := NewRecipientRepo(db).Claim(context.Background(), "camp-1", 2, []string{"a@x.com", "b@x.com", "c@x.com"}, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "c@x.com"}, got)
}

func TestRecipientRepo_ClaimTakesOverStaleClaims(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	// A crashed run left all three claimed; the stale window lets them go.
	mock.ExpectQuery(regexp.QuoteMeta("campaign_recipients.updated_at < NOW() - make_interval(secs => $4)")).
		WithArgs("camp-1", 3, sqlmock.AnyArg(), float64(90)).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("a@x.com").AddRow("b@x.com").AddRow("c@x.com"))

	got, err := NewRecipientRepo(db).Claim(context.Background(), "camp-1", 3, []string{"a@x.com", "b@x.com", "c@x.com"}, 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, got)
}

func TestRecipientRepo_EmptyInputsSkipQueries(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRecipientRepo(db)
	got, err := repo.Claim(context.Background(), "camp-1", 1, nil, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, repo.Mark(context.Background(), "camp-1", 1, nil, domain.RecipientSent, "m-1"))
}

func TestSuppressionRepo_SuppressKeepsExisting(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("ON CONFLICT \\(owner_id, email\\) DO UPDATE SET email = EXCLUDED.email").
		WillReturnRows(sqlmock.NewRows([]string{"id", "reason", "created_at"}).AddRow("s-old", "bounce", created))

	s := &domain.Suppression{OwnerID: "user-1", Email: "a@x.com", Reason: domain.ReasonSpam}
	require.NoError(t, NewSuppressionRepo(db).Suppress(context.Background(), s))
	assert.Equal(t, "s-old", s.ID)
	assert.Equal(t, domain.ReasonBounce, s.Reason)
	assert.True(t, s.CreatedAt.Equal(created))
}

func TestSuppressionRepo_SuppressedAmong(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("email = ANY($2::text[])")).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("b@x.com"))

	got, err := NewSuppressionRepo(db).SuppressedAmong(context.Background(), "user-1", []string{"a@x.com", "b@x.com"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"b@x.com": true}, got)
}

func TestSuppressionRepo_RemoveNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM suppressions").
		WithArgs("user-1", "a@x.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, NewSuppressionRepo(db).Remove(context.Background(), "user-1", "a@x.com"), suppression.ErrNotFound)
}

func TestDeliveryRepo_AppendDefaultsDetails(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO delivery_logs").
		WithArgs(sqlmock.AnyArg(), "user-1", domain.ActionSendEmail, domain.LogSuccess, []byte("{}")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	e := &domain.DeliveryLogEntry{UserID: "user-1", Action: domain.ActionSendEmail, Status: domain.LogSuccess}
	require.NoError(t, NewDeliveryRepo(db).Append(context.Background(), e))
	assert.NotEmpty(t, e.ID)
}

func TestDeliveryRepo_DailyUsesTimeZone(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	since := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("created_at AT TIME ZONE $3")).
		WithArgs("user-1", since, "America/Sao_Paulo").
		WillReturnRows(sqlmock.NewRows([]string{"day", "success", "error"}).
			AddRow("2026-03-01", 4, 1).
			AddRow("2026-03-03", 2, 0))

	got, err := NewDeliveryRepo(db).Daily(context.Background(), "user-1", since, "America/Sao_Paulo")
	require.NoError(t, err)
	assert.Equal(t, []domain.DailyCount{
		{Day: "2026-03-01", Success: 4, Error: 1},
		{Day: "2026-03-03", Success: 2, Error: 0},
	}, got)
}

func TestDeliveryRepo_CountSinceWrapsErrors(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM delivery_logs").WillReturnError(boom)

	_, err := NewDeliveryRepo(db).CountSince(context.Background(), "user-1", domain.ActionSendEmail, domain.LogSuccess, time.Now())
	assert.ErrorIs(t, err, boom)
}
