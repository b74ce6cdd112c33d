// Package store provides durable backends for the gate's mutable records:
// escalations, unknowns, handoffs and audit chain entries on Postgres or
// SQLite, and a Redis index of the pending escalation queue.
//
// Every state transition is a single UPDATE guarded by the expected status,
// so a failed or lost transition is never partially applied.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq" // Postgres driver
	_ "modernc.org/sqlite"
)

// Dialect selects SQL placeholder syntax.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// timeLayout is fixed width so lexical order in TEXT columns is
// chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB is a database handle with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// NewDB wraps an open handle.
func NewDB(db *sql.DB, dialect Dialect) *DB {
	return &DB{DB: db, Dialect: dialect}
}

// Open connects to a database URL and applies migrations.
//
//	postgres://... or postgresql://...  -> lib/pq
//	sqlite://path, file:path or :memory: -> modernc sqlite
func Open(ctx context.Context, url string) (*DB, error) {
	driver, dsn, dialect, err := parseURL(url)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, persistenceError("open", err)
	}
	if dialect == SQLite {
		// One writer; also keeps :memory: databases on a single connection.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, persistenceError("ping", err)
	}
	db := NewDB(sqlDB, dialect)
	if err := db.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func parseURL(url string) (driver, dsn string, dialect Dialect, err error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres", url, Postgres, nil
	case strings.HasPrefix(url, "sqlite://"):
		return "sqlite", strings.TrimPrefix(url, "sqlite://"), SQLite, nil
	case strings.HasPrefix(url, "file:"), url == ":memory:":
		return "sqlite", url, SQLite, nil
	default:
		return "", "", "", fmt.Errorf("store: unsupported database url %q", url)
	}
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders to ?N for SQLite.
func (db *DB) rebind(query string) string {
	if db.Dialect != SQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?$1")
}

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.QueryContext(ctx, db.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.QueryRowContext(ctx, db.rebind(query), args...)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: bad timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

func parseTimePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// where accumulates AND-ed conditions with numbered placeholders, starting
// after offset already-bound arguments.
type where struct {
	offset int
	conds  []string
	args   []any
}

func (w *where) add(cond string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", w.offset+len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

// in adds "col IN (...)" for a non-empty set.
func (w *where) in(col string, values []string) {
	if len(values) == 0 {
		return
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	w.add(col+" IN ("+marks+")", args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func strs[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
