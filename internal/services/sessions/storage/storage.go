// Package storage defines persistence contracts for session records.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/sessiontrack/internal/services/sessions/domain"
)

var (
	// ErrNotFound indicates a requested session record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a session with the same ID is already stored.
	ErrAlreadyExists = errors.New("record already exists")
)

// Store persists session documents.
type Store interface {
	CreateSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	UpdateSessionStatus(ctx context.Context, sessionID string, status domain.Status, updatedAt time.Time) (domain.Session, error)
	ListSessions(ctx context.Context, filter domain.Filter) ([]domain.Session, error)
	Close() error
}

// Kind names a Store implementation.
type Kind string

const (
	KindSQLite Kind = "sqlite"
	KindRedis  Kind = "redis"
)
