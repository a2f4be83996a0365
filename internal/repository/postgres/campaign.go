package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, owner_id, name, subject, template_id, target_tags, segment_id,
	status, scheduled_at, repeat_interval, repeat_count, active_occurrence, sent_count, failed_count,
	last_error, started_at, completed_at, created_at, updated_at`

func scanCampaign(s rowScanner) (*domain.Campaign, error) {
	var (
		c                                   domain.Campaign
		seg                                 sql.NullString
		scheduledAt, startedAt, completedAt sql.NullTime
	)
	err := s.Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.Subject, &c.TemplateID, pq.Array(&c.TargetTags), &seg,
		&c.Status, &scheduledAt, &c.RepeatInterval, &c.RepeatCount, &c.ActiveOccurrence, &c.SentCount, &c.FailedCount,
		&c.LastError, &startedAt, &completedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if seg.Valid {
		c.SegmentID = &seg.String
	}
	if scheduledAt.Valid {
		c.ScheduledAt = &scheduledAt.Time
	}
	if startedAt.Valid {
		c.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	if c.TargetTags == nil {
		c.TargetTags = []string{}
	}
	return &c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, ownerID, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, ownerID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	where := ` WHERE owner_id = $1`
	args := []any{ownerID}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, limitOrDefault(f.Limit), f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	out := []domain.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO campaigns
			(id, owner_id, name, subject, template_id, target_tags, segment_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`, c.ID, c.OwnerID, c.Name, c.Subject, c.TemplateID, pq.Array(c.TargetTags), c.SegmentID, c.Status,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Update(ctx context.Context, ownerID, id string, u campaign.UpdateFields) error {
	var set updateSet
	if u.Name != nil {
		set.add("name", *u.Name)
	}
	if u.Subject != nil {
		set.add("subject", *u.Subject)
	}
	if u.TemplateID != nil {
		set.add("template_id", *u.TemplateID)
	}
	if u.TargetTags != nil {
		set.add("target_tags", pq.Array(*u.TargetTags))
	}
	if u.SegmentID != nil {
		var seg any
		if *u.SegmentID != "" {
			seg = *u.SegmentID
		}
		set.add("segment_id", seg)
	}
	if u.ScheduledAt != nil {
		set.add("scheduled_at", *u.ScheduledAt)
	}
	if u.RepeatInterval != nil {
		set.add("repeat_interval", *u.RepeatInterval)
	}
	if u.RepeatCount != nil {
		set.add("repeat_count", *u.RepeatCount)
	}
	if set.empty() {
		return nil
	}

	q, args := set.statement("campaigns", id, ownerID)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM campaigns
		WHERE id = $1 AND owner_id = $2 AND status <> 'sending'
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// TransitionStatus is a compare-and-set on status. Entering sending stamps
// started_at; entering sent or error stamps completed_at.
func (r *CampaignRepo) TransitionStatus(ctx context.Context, ownerID, id string, from, to domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			status = $1,
			started_at = CASE WHEN $1 = 'sending' THEN NOW() ELSE started_at END,
			completed_at = CASE WHEN $1 IN ('sent', 'error') THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE id = $2 AND owner_id = $3 AND status = $4
	`, to, id, ownerID, from)
	if err != nil {
		return fmt.Errorf("transition campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s is no longer %s", campaign.ErrInvalidTransition, id, from)
	}
	return nil
}

// StartRun moves a campaign from from to sending and records occurrence as
// the run that owns it. Like TransitionStatus it is a compare-and-set.
func (r *CampaignRepo) StartRun(ctx context.Context, ownerID, id string, from domain.CampaignStatus, occurrence int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			status = 'sending',
			active_occurrence = $1,
			started_at = NOW(),
			updated_at = NOW()
		WHERE id = $2 AND owner_id = $3 AND status = $4
	`, occurrence, id, ownerID, from)
	if err != nil {
		return fmt.Errorf("start campaign run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s is no longer %s", campaign.ErrInvalidTransition, id, from)
	}
	return nil
}

func (r *CampaignRepo) RecordRun(ctx context.Context, ownerID, id string, rr campaign.RunResult) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			sent_count = sent_count + $1,
			failed_count = failed_count + $2,
			last_error = $3,
			updated_at = NOW()
		WHERE id = $4 AND owner_id = $5
	`, rr.Sent, rr.Failed, rr.LastError, id, ownerID)
	if err != nil {
		return fmt.Errorf("record campaign run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) CountByStatus(ctx context.Context, ownerID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM campaigns WHERE owner_id = $1 GROUP BY status`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count campaigns by status: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
