// Package sqlite provides a SQLite-backed session document store.
//
// Each session is stored as one JSON document keyed by its ID. Filters query
// document fields through json_extract and are served by expression indexes.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/sessiontrack/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/domain"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/storage"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const dsnPragmas = "_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Store persists session documents in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite session store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?" + dsnPragmas
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite admits one writer at a time.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateSession inserts one session document.
func (s *Store) CreateSession(ctx context.Context, session domain.Session) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(session.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	body, err := encodeDocument(session)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO session_documents (id, body) VALUES (?, ?)`,
		session.SessionID,
		body,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns one session by ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Session{}, err
	}
	session, err := getDocument(ctx, s.sqlDB, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, err
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// UpdateSessionStatus rewrites the status and update time of one document
// and returns the stored result.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.Status, updatedAt time.Time) (domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Session{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, fmt.Errorf("begin update session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE session_documents
		    SET body = json_set(body, '$.status', ?, '$.updatedAt', ?)
		  WHERE id = ?`,
		string(status),
		updatedAt.UTC().Format(time.RFC3339Nano),
		sessionID,
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Session{}, fmt.Errorf("update session: %w", err)
	}
	if affected == 0 {
		return domain.Session{}, storage.ErrNotFound
	}

	session, err := getDocument(ctx, tx, sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("reload session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Session{}, fmt.Errorf("commit update session: %w", err)
	}
	return session, nil
}

// ListSessions returns every session matching filter in insertion order.
func (s *Store) ListSessions(ctx context.Context, filter domain.Filter) ([]domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	query := `SELECT body FROM session_documents`
	var (
		clauses []string
		args    []any
	)
	if filter.Status != nil {
		clauses = append(clauses, `json_extract(body, '$.status') = ?`)
		args = append(args, string(*filter.Status))
	}
	if filter.Region != nil {
		clauses = append(clauses, `json_extract(body, '$.region') = ?`)
		args = append(args, *filter.Region)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY rowid ASC`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		session, err := decodeDocument(body)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDocument(ctx context.Context, q queryRower, sessionID string) (domain.Session, error) {
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM session_documents WHERE id = ?`, sessionID).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, err
	}
	return decodeDocument(body)
}

func encodeDocument(session domain.Session) (string, error) {
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = session.UpdatedAt.UTC()
	data, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("encode session document: %w", err)
	}
	return string(data), nil
}

func decodeDocument(body string) (domain.Session, error) {
	var session domain.Session
	if err := json.Unmarshal([]byte(body), &session); err != nil {
		return domain.Session{}, fmt.Errorf("decode session document: %w", err)
	}
	return session, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "session_documents.id")
}

var _ storage.Store = (*Store)(nil)
