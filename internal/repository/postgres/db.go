// Package postgres implements the service repositories on PostgreSQL with
// database/sql and lib/pq. Every query is scoped by owner.
package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const defaultLimit = 50

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// updateSet builds the SET clause of a dynamic UPDATE.
type updateSet struct {
	sets []string
	args []any
}

func (u *updateSet) add(col string, val any) {
	u.args = append(u.args, val)
	u.sets = append(u.sets, fmt.Sprintf("%s = $%d", col, len(u.args)))
}

func (u *updateSet) empty() bool { return len(u.sets) == 0 }

// statement appends the trailing id/owner arguments and returns the statement.
func (u *updateSet) statement(table, id, ownerID string) (string, []any) {
	q := fmt.Sprintf("UPDATE %s SET %s, updated_at = NOW() WHERE id = $%d AND owner_id = $%d",
		table, strings.Join(u.sets, ", "), len(u.args)+1, len(u.args)+2)
	return q, append(u.args, id, ownerID)
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}
