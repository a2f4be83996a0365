package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/service/delivery"
)

// DeliveryRepo implements delivery.Repository against PostgreSQL.
type DeliveryRepo struct{ db *sql.DB }

// NewDeliveryRepo creates a Postgres-backed delivery log repository.
func NewDeliveryRepo(db *sql.DB) *DeliveryRepo { return &DeliveryRepo{db: db} }

func (r *DeliveryRepo) Append(ctx context.Context, e *domain.DeliveryLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	details := []byte(e.Details)
	if len(details) == 0 {
		details = []byte("{}")
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO delivery_logs (id, user_id, action, status, details, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`, e.ID, e.UserID, e.Action, e.Status, details).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append delivery log: %w", err)
	}
	return nil
}

func (r *DeliveryRepo) List(ctx context.Context, userID string, f delivery.ListFilter) ([]domain.DeliveryLogEntry, int, error) {
	where := ` WHERE user_id = $1`
	args := []any{userID}
	if f.Action != "" {
		args = append(args, f.Action)
		where += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delivery_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count delivery logs: %w", err)
	}

	q := `SELECT id, user_id, action, status, details, created_at FROM delivery_logs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, limitOrDefault(f.Limit), f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list delivery logs: %w", err)
	}
	defer rows.Close()

	out := []domain.DeliveryLogEntry{}
	for rows.Next() {
		var (
			e       domain.DeliveryLogEntry
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Status, &details, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan delivery log: %w", err)
		}
		e.Details = details
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *DeliveryRepo) CountSince(ctx context.Context, userID, action string, status domain.LogStatus, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM delivery_logs
		WHERE user_id = $1 AND action = $2 AND status = $3 AND created_at >= $4
	`, userID, action, status, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count delivery logs: %w", err)
	}
	return n, nil
}

func (r *DeliveryRepo) Totals(ctx context.Context, userID string) (map[string]map[domain.LogStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT action, status, COUNT(*) FROM delivery_logs WHERE user_id = $1 GROUP BY action, status`, userID)
	if err != nil {
		return nil, fmt.Errorf("delivery totals: %w", err)
	}
	defer rows.Close()

	out := map[string]map[domain.LogStatus]int{}
	for rows.Next() {
		var (
			action string
			status domain.LogStatus
			n      int
		)
		if err := rows.Scan(&action, &status, &n); err != nil {
			return nil, err
		}
		if out[action] == nil {
			out[action] = map[domain.LogStatus]int{}
		}
		out[action][status] = n
	}
	return out, rows.Err()
}

func (r *DeliveryRepo) Daily(ctx context.Context, userID string, since time.Time, tz string) ([]domain.DailyCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT to_char(date_trunc('day', created_at AT TIME ZONE $3), 'YYYY-MM-DD') AS day,
		       COUNT(*) FILTER (WHERE status = 'success'),
		       COUNT(*) FILTER (WHERE status = 'error')
		FROM delivery_logs
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY day
		ORDER BY day
	`, userID, since, tz)
	if err != nil {
		return nil, fmt.Errorf("daily delivery counts: %w", err)
	}
	defer rows.Close()

	out := []domain.DailyCount{}
	for rows.Next() {
		var d domain.DailyCount
		if err := rows.Scan(&d.Day, &d.Success, &d.Error); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
