// Package sqlite is the embedded store backend. It implements the directory,
// leave, approval, notifications and job run store interfaces on one
// database file (or ":memory:" in tests).
//
// The database is opened with a single connection and BEGIN IMMEDIATE
// transactions, so writers are fully serialized. A transaction started by
// WithTx travels on the context; every call made with that context runs
// inside it, and nested WithTx calls join it. Calls made inside a transaction
// must use the transaction's context or they wait for the connection forever.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"intranet/internal/domain/apperr"
)

type Store struct {
	db *sql.DB
}

// New opens (and migrates) the database at path. Use ":memory:" for a private
// in-memory database.
func New(path string) (*Store, error) {
	dsn := path + "?_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type txKey struct{}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithTx runs fn in a transaction, joining the one already on ctx if any.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	position TEXT NOT NULL DEFAULT '',
	hire_date TEXT,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	doc_number TEXT NOT NULL UNIQUE,
	doc_type TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	form_data TEXT,
	status TEXT NOT NULL,
	drafter_id TEXT NOT NULL,
	current_approver_id TEXT,
	urgency TEXT NOT NULL,
	payload_json TEXT,
	drafted_at TEXT,
	completed_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_current_approver
	ON documents(current_approver_id, status);
CREATE INDEX IF NOT EXISTS idx_documents_drafter
	ON documents(drafter_id);

CREATE TABLE IF NOT EXISTS approval_lines (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	approver_id TEXT NOT NULL,
	line_type TEXT NOT NULL,
	status TEXT NOT NULL,
	optional INTEGER NOT NULL DEFAULT 0,
	comment TEXT,
	approved_at TEXT,
	delegated_to TEXT,
	delegated_at TEXT,
	UNIQUE(document_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_approval_lines_approver
	ON approval_lines(approver_id, status);

CREATE TABLE IF NOT EXISTS document_references (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	PRIMARY KEY (document_id, user_id)
);

CREATE TABLE IF NOT EXISTS document_attachments (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	file_name TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	file_size INTEGER NOT NULL DEFAULT 0,
	storage_key TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS annual_leaves (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	total_hours TEXT NOT NULL,
	used_hours TEXT NOT NULL,
	remaining_hours TEXT NOT NULL,
	carried_over_hours TEXT NOT NULL,
	granted_date TEXT NOT NULL,
	expiry_date TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(user_id, year)
);

CREATE INDEX IF NOT EXISTS idx_annual_leaves_expiry
	ON annual_leaves(expiry_date);

CREATE TABLE IF NOT EXISTS leave_adjustments (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	hours TEXT NOT NULL,
	reason TEXT NOT NULL,
	created_by TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leave_adjustments_user_year
	ON leave_adjustments(user_id, year);

CREATE TABLE IF NOT EXISTS delegations (
	id TEXT PRIMARY KEY,
	approver_id TEXT NOT NULL,
	delegate_id TEXT NOT NULL,
	valid_from TEXT NOT NULL,
	valid_to TEXT,
	lines_reassigned INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	read_at TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user
	ON notifications(user_id, created_at);

CREATE TABLE IF NOT EXISTS job_runs (
	id TEXT PRIMARY KEY,
	job_type TEXT NOT NULL,
	status TEXT NOT NULL,
	details_json TEXT,
	started_at TEXT NOT NULL,
	completed_at TEXT
);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	user_id TEXT NOT NULL,
	key TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	request_hash TEXT NOT NULL,
	response_json TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (user_id, key, endpoint)
);
`

const (
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
	dateLayout      = "2006-01-02"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	return err
}

// likePattern builds a case-insensitive LIKE pattern with wildcards escaped.
func likePattern(keyword string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(keyword)) + "%"
}

// prefixed qualifies every column in a comma separated list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func expectOne(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}
