package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/campaign-dashboard/internal/domain"
)

// RecipientRepo records per-address claims of a campaign occurrence in
// campaign_recipients.
type RecipientRepo struct{ db *sql.DB }

// NewRecipientRepo creates a Postgres-backed recipient repository.
func NewRecipientRepo(db *sql.DB) *RecipientRepo { return &RecipientRepo{db: db} }

// Claim inserts a claimed row per email. An existing row is only taken over
// when it failed before, or when it is still claimed but untouched for
// staleAfter, which means the run that claimed it died before marking it.
func (r *RecipientRepo) Claim(ctx context.Context, campaignID string, occurrence int, emails []string, staleAfter time.Duration) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		INSERT INTO campaign_recipients (campaign_id, occurrence, email, status, updated_at)
		SELECT $1, $2, e, 'claimed', NOW() FROM unnest($3::text[]) AS e
		ON CONFLICT (campaign_id, occurrence, email) DO UPDATE
			SET status = 'claimed', message_id = '', updated_at = NOW()
			WHERE campaign_recipients.status = 'failed'
			   OR (campaign_recipients.status = 'claimed'
			       AND campaign_recipients.updated_at < NOW() - make_interval(secs => $4))
		RETURNING email
	`, campaignID, occurrence, pq.Array(emails), staleAfter.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim recipients: %w", err)
	}
	defer rows.Close()

	won := make(map[string]bool, len(emails))
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		won[email] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING order is unspecified; keep the caller's order.
	out := make([]string, 0, len(won))
	for _, e := range emails {
		if won[e] {
			out = append(out, e)
			delete(won, e)
		}
	}
	return out, nil
}

func (r *RecipientRepo) Mark(ctx context.Context, campaignID string, occurrence int, emails []string, status domain.RecipientStatus, messageID string) error {
	if len(emails) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_recipients SET status = $4, message_id = $5, updated_at = NOW()
		WHERE campaign_id = $1 AND occurrence = $2 AND email = ANY($3::text[])
	`, campaignID, occurrence, pq.Array(emails), status, messageID)
	if err != nil {
		return fmt.Errorf("mark recipients: %w", err)
	}
	return nil
}
