package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

// JobRepo stores scheduled campaign occurrences in campaign_jobs.
type JobRepo struct{ db *sql.DB }

// NewJobRepo creates a Postgres-backed job repository.
func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{db: db} }

const jobColumns = `id, campaign_id, owner_id, run_at, scheduled_for, repeat_interval, remaining_runs,
	occurrence, status, attempts, last_error, lease_until, created_at`

func scanJob(s rowScanner) (*domain.CampaignJob, error) {
	var (
		j     domain.CampaignJob
		lease sql.NullTime
	)
	err := s.Scan(&j.ID, &j.CampaignID, &j.OwnerID, &j.RunAt, &j.ScheduledFor, &j.RepeatInterval, &j.RemainingRuns,
		&j.Occurrence, &j.Status, &j.Attempts, &j.LastError, &lease, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lease.Valid {
		j.LeaseUntil = &lease.Time
	}
	return &j, nil
}

func (r *JobRepo) Create(ctx context.Context, j *domain.CampaignJob) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = domain.JobPending
	}
	if j.ScheduledFor.IsZero() {
		j.ScheduledFor = j.RunAt
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO campaign_jobs
			(id, campaign_id, owner_id, run_at, scheduled_for, repeat_interval, remaining_runs, occurrence, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`, j.ID, j.CampaignID, j.OwnerID, j.RunAt, j.ScheduledFor, j.RepeatInterval, j.RemainingRuns, j.Occurrence, j.Status,
	).Scan(&j.CreatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (r *JobRepo) CancelPending(ctx context.Context, ownerID, campaignID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs SET status = 'cancelled', lease_until = NULL
		WHERE owner_id = $1 AND campaign_id = $2 AND status = 'pending'
	`, ownerID, campaignID)
	if err != nil {
		return 0, fmt.Errorf("cancel jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *JobRepo) NextOccurrence(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(occurrence), 0) + 1 FROM campaign_jobs WHERE campaign_id = $1`, campaignID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next occurrence: %w", err)
	}
	return n, nil
}

// ClaimDue leases up to limit jobs that are due, or whose previous lease
// expired, and counts the attempt. Rows locked by another worker are skipped.
func (r *JobRepo) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.CampaignJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE campaign_jobs SET
			status = 'running',
			attempts = attempts + 1,
			lease_until = $2
		WHERE id IN (
			SELECT id FROM campaign_jobs
			WHERE (status = 'pending' AND run_at <= $1)
			   OR (status = 'running' AND lease_until < $1)
			ORDER BY run_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		now, now.Add(lease), limit)
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (r *JobRepo) Complete(ctx context.Context, id string) error {
	return r.finish(ctx, id, domain.JobDone, "")
}

func (r *JobRepo) Fail(ctx context.Context, id, lastError string) error {
	return r.finish(ctx, id, domain.JobFailed, lastError)
}

func (r *JobRepo) finish(ctx context.Context, id string, status domain.JobStatus, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs SET status = $2, last_error = $3, lease_until = NULL
		WHERE id = $1 AND status = 'running'
	`, id, status, lastError)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

// Retry puts a running job back in the queue at runAt. scheduled_for is
// left alone.
func (r *JobRepo) Retry(ctx context.Context, id string, runAt time.Time, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs SET status = 'pending', run_at = $2, last_error = $3, lease_until = NULL
		WHERE id = $1 AND status = 'running'
	`, id, runAt, lastError)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	return nil
}

// ListByCampaign returns every occurrence queued for a campaign, newest first.
func (r *JobRepo) ListByCampaign(ctx context.Context, ownerID, campaignID string) ([]domain.CampaignJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM campaign_jobs WHERE owner_id = $1 AND campaign_id = $2 ORDER BY occurrence DESC`,
		ownerID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := []domain.CampaignJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}
