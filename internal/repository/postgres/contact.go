package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/service/contact"
)

// ContactRepo implements contact.Repository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

const contactColumns = `id, owner_id, email, display_name, tags, segment_id, created_at, updated_at`

func scanContact(s rowScanner) (*domain.Contact, error) {
	var (
		c   domain.Contact
		seg sql.NullString
	)
	if err := s.Scan(&c.ID, &c.OwnerID, &c.Email, &c.DisplayName, pq.Array(&c.Tags), &seg, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if seg.Valid {
		c.SegmentID = &seg.String
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return &c, nil
}

func (r *ContactRepo) Get(ctx context.Context, ownerID, id string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (r *ContactRepo) List(ctx context.Context, ownerID string, f contact.ListFilter) ([]domain.Contact, int, error) {
	where := ` WHERE owner_id = $1`
	args := []any{ownerID}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND (email ILIKE $%d OR display_name ILIKE $%d)", len(args), len(args))
	}
	if f.Tag != "" {
		args = append(args, f.Tag)
		where += fmt.Sprintf(" AND $%d = ANY(tags)", len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	q := `SELECT ` + contactColumns + ` FROM contacts` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limitOrDefault(f.Limit), f.Offset)

	out, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	return out, total, nil
}

func (r *ContactRepo) query(ctx context.Context, q string, args ...any) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *ContactRepo) Create(ctx context.Context, c *domain.Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO contacts (id, owner_id, email, display_name, tags, segment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`, c.ID, c.OwnerID, c.Email, c.DisplayName, pq.Array(c.Tags), c.SegmentID).Scan(&c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return contact.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

// Upsert keeps the stored name and segment when the incoming ones are empty
// and merges tags.
func (r *ContactRepo) Upsert(ctx context.Context, c *domain.Contact) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	var inserted bool
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO contacts (id, owner_id, email, display_name, tags, segment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (owner_id, email) DO UPDATE SET
			display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE contacts.display_name END,
			tags = contacts.tags || ARRAY(SELECT unnest(EXCLUDED.tags) EXCEPT SELECT unnest(contacts.tags)),
			segment_id = COALESCE(EXCLUDED.segment_id, contacts.segment_id),
			updated_at = NOW()
		RETURNING (xmax = 0)
	`, c.ID, c.OwnerID, c.Email, c.DisplayName, pq.Array(c.Tags), c.SegmentID).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert contact: %w", err)
	}
	return inserted, nil
}

func (r *ContactRepo) Update(ctx context.Context, ownerID, id string, u contact.UpdateFields) error {
	var set updateSet
	if u.Email != nil {
		set.add("email", *u.Email)
	}
	if u.DisplayName != nil {
		set.add("display_name", *u.DisplayName)
	}
	if u.Tags != nil {
		set.add("tags", pq.Array(*u.Tags))
	}
	if u.SegmentID != nil {
		var seg any
		if *u.SegmentID != "" {
			seg = *u.SegmentID
		}
		set.add("segment_id", seg)
	}
	if set.empty() {
		return nil
	}

	q, args := set.statement("contacts", id, ownerID)
	res, err := r.db.ExecContext(ctx, q, args...)
	if isUniqueViolation(err) {
		return contact.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) Delete(ctx context.Context, ownerID, id string) error {
	return r.exec(ctx, "delete contact",
		`DELETE FROM contacts WHERE id = $1 AND owner_id = $2`, id, ownerID)
}

func (r *ContactRepo) AddTags(ctx context.Context, ownerID, id string, tags []string) error {
	return r.exec(ctx, "add tags", `
		UPDATE contacts
		SET tags = tags || ARRAY(SELECT unnest($3::text[]) EXCEPT SELECT unnest(tags)), updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID, pq.Array(tags))
}

func (r *ContactRepo) RemoveTags(ctx context.Context, ownerID, id string, tags []string) error {
	return r.exec(ctx, "remove tags", `
		UPDATE contacts
		SET tags = ARRAY(SELECT t FROM unnest(tags) AS t WHERE t <> ALL($3::text[])), updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID, pq.Array(tags))
}

func (r *ContactRepo) exec(ctx context.Context, op, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

// Resolve matches any of the tag names (array overlap), else the segment,
// else returns every contact.
func (r *ContactRepo) Resolve(ctx context.Context, ownerID string, f contact.Filter) ([]domain.Contact, error) {
	q := `SELECT ` + contactColumns + ` FROM contacts WHERE owner_id = $1`
	args := []any{ownerID}
	switch {
	case len(f.TagNames) > 0:
		q += ` AND tags && $2::text[]`
		args = append(args, pq.Array(f.TagNames))
	case f.SegmentID != "":
		q += ` AND segment_id = $2`
		args = append(args, f.SegmentID)
	}
	q += ` ORDER BY created_at, id`

	out, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve contacts: %w", err)
	}
	return out, nil
}

func (r *ContactRepo) Count(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts WHERE owner_id = $1`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return n, nil
}
