package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/service/tag"
)

// TagRepo implements tag.Repository against PostgreSQL.
type TagRepo struct{ db *sql.DB }

// NewTagRepo creates a Postgres-backed tag repository.
func NewTagRepo(db *sql.DB) *TagRepo { return &TagRepo{db: db} }

const tagColumns = `id, owner_id, name, color, icon, created_at`

func scanTag(s rowScanner) (*domain.Tag, error) {
	var t domain.Tag
	if err := s.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Color, &t.Icon, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TagRepo) List(ctx context.Context, ownerID string) ([]domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE owner_id = $1 ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	out := []domain.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TagRepo) Get(ctx context.Context, ownerID, id string) (*domain.Tag, error) {
	return r.get(ctx, r.db, ownerID, id, "")
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *TagRepo) get(ctx context.Context, q queryRower, ownerID, id, lock string) (*domain.Tag, error) {
	t, err := scanTag(q.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE id = $1 AND owner_id = $2`+lock, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tag.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return t, nil
}

func (r *TagRepo) Create(ctx context.Context, t *domain.Tag) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tags (id, owner_id, name, color, icon, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`, t.ID, t.OwnerID, t.Name, t.Color, t.Icon).Scan(&t.CreatedAt)
	if isUniqueViolation(err) {
		return tag.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// Update renames the tag on every contact of the owner in the same
// transaction as the tag row itself.
func (r *TagRepo) Update(ctx context.Context, ownerID, id string, u tag.UpdateFields) error {
	var set updateSet
	if u.Name != nil {
		set.add("name", *u.Name)
	}
	if u.Color != nil {
		set.add("color", *u.Color)
	}
	if u.Icon != nil {
		set.add("icon", *u.Icon)
	}
	if set.empty() {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	old, err := r.get(ctx, tx, ownerID, id, " FOR UPDATE")
	if err != nil {
		return err
	}

	q := fmt.Sprintf("UPDATE tags SET %s WHERE id = $%d AND owner_id = $%d",
		strings.Join(set.sets, ", "), len(set.args)+1, len(set.args)+2)
	if _, err := tx.ExecContext(ctx, q, append(set.args, id, ownerID)...); err != nil {
		if isUniqueViolation(err) {
			return tag.ErrDuplicateName
		}
		return fmt.Errorf("update tag: %w", err)
	}

	if u.Name != nil && *u.Name != old.Name {
		if _, err := tx.ExecContext(ctx, `
			UPDATE contacts SET tags = array_replace(tags, $2, $3), updated_at = NOW()
			WHERE owner_id = $1 AND $2 = ANY(tags)
		`, ownerID, old.Name, *u.Name); err != nil {
			return fmt.Errorf("rename tag on contacts: %w", err)
		}
	}
	return tx.Commit()
}

func (r *TagRepo) Delete(ctx context.Context, ownerID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var name string
	err = tx.QueryRowContext(ctx,
		`DELETE FROM tags WHERE id = $1 AND owner_id = $2 RETURNING name`, id, ownerID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return tag.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE contacts SET tags = array_remove(tags, $2), updated_at = NOW()
		WHERE owner_id = $1 AND $2 = ANY(tags)
	`, ownerID, name); err != nil {
		return fmt.Errorf("strip tag from contacts: %w", err)
	}
	return tx.Commit()
}
