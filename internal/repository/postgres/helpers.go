package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// exists runs a SELECT 1 style query and reports whether it returned a row
func exists(ctx context.Context, q queryer, query string, args ...interface{}) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// writeError maps driver errors of a write on kind/id onto the application taxonomy
func writeError(kind, id, action string, err error) error {
	switch {
	case isUniqueViolation(err):
		return errors.UniquenessConflict(kind, id, err)
	case isForeignKeyViolation(err):
		return errors.MissingDependency(kind+" reference", id).WithDetails(map[string]string{
			"kind":  kind,
			"id":    id,
			"cause": err.Error(),
		})
	default:
		return errors.DatabaseError(action, err)
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if stderrors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	var liteErr *sqlite.Error
	if stderrors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func unixOrNull(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func stringOrNull(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringOrNil(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// orderClause whitelists a sort column; unknown columns fall back to def
func orderClause(sortBy string, desc bool, allowed map[string]string, def string) string {
	col, ok := allowed[sortBy]
	if !ok {
		col = def
	}
	if desc {
		return " ORDER BY " + col + " DESC"
	}
	return " ORDER BY " + col + " ASC"
}
