// Package redis provides a Redis-backed session document store.
//
// Documents live at {prefix}doc:{id} as JSON strings. Set indexes track all
// IDs and the IDs per status and per region so filtered lists are served by
// SINTER rather than a key scan.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/louisbranch/sessiontrack/internal/platform/timeouts"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/domain"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/storage"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "sessions:"

// maxWatchAttempts bounds optimistic-lock retries for one status update.
const maxWatchAttempts = 8

// Options configures Open.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store persists session documents in Redis.
type Store struct {
	client *goredis.Client
	prefix string
	owned  bool
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, timeouts.StoreDial)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	store := NewStore(client, opts.Prefix)
	store.owned = true
	return store, nil
}

// NewStore wraps an existing client. Close does not close a borrowed client.
func NewStore(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Close releases the Redis client when the store opened it.
func (s *Store) Close() error {
	if s == nil || s.client == nil || !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *Store) docKey(sessionID string) string {
	return s.prefix + "doc:" + sessionID
}

func (s *Store) allIndexKey() string {
	return s.prefix + "index:all"
}

func (s *Store) statusIndexKey(status domain.Status) string {
	return s.prefix + "index:status:" + string(status)
}

func (s *Store) regionIndexKey(region string) string {
	return s.prefix + "index:region:" + region
}

// CreateSession stores a new document and indexes it.
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

	created, err := s.client.SetNX(ctx, s.docKey(session.SessionID), body, 0).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !created {
		return storage.ErrAlreadyExists
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.SAdd(ctx, s.allIndexKey(), session.SessionID)
		pipe.SAdd(ctx, s.statusIndexKey(session.Status), session.SessionID)
		pipe.SAdd(ctx, s.regionIndexKey(session.Region), session.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

// GetSession returns one session by ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Session{}, err
	}
	body, err := s.client.Get(ctx, s.docKey(sessionID)).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return decodeDocument(body)
}

// UpdateSessionStatus rewrites status and update time under WATCH and moves
// the ID between status indexes in the same transaction.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.Status, updatedAt time.Time) (domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Session{}, err
	}
	key := s.docKey(sessionID)

	var updated domain.Session
	txf := func(tx *goredis.Tx) error {
		body, err := tx.Get(ctx, key).Result()
		if errors.Is(err, goredis.Nil) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := decodeDocument(body)
		if err != nil {
			return err
		}
		previous := current.Status
		current.Status = status
		current.UpdatedAt = updatedAt.UTC()
		next, err := encodeDocument(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, next, goredis.KeepTTL)
			if previous != status {
				pipe.SRem(ctx, s.statusIndexKey(previous), sessionID)
			}
			pipe.SAdd(ctx, s.statusIndexKey(status), sessionID)
			return nil
		})
		if err != nil {
			return err
		}
		updated = current
		return nil
	}

	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, err
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return domain.Session{}, fmt.Errorf("update session: %w", err)
	}
	return domain.Session{}, fmt.Errorf("update session: too much contention on %s", sessionID)
}

// ListSessions returns every session matching filter ordered by creation time.
func (s *Store) ListSessions(ctx context.Context, filter domain.Filter) ([]domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	keys := []string{s.allIndexKey()}
	if filter.Status != nil {
		keys = append(keys, s.statusIndexKey(*filter.Status))
	}
	if filter.Region != nil {
		keys = append(keys, s.regionIndexKey(*filter.Region))
	}
	ids, err := s.client.SInter(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list session ids: %w", err)
	}
	sessions := make([]domain.Session, 0, len(ids))
	if len(ids) == 0 {
		return sessions, nil
	}

	docKeys := make([]string, len(ids))
	for i, id := range ids {
		docKeys[i] = s.docKey(id)
	}
	values, err := s.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for _, value := range values {
		body, ok := value.(string)
		if !ok {
			// Indexed but the document is gone.
			continue
		}
		session, err := decodeDocument(body)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		sessions = append(sessions, session)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
		}
		return sessions[i].SessionID < sessions[j].SessionID
	})
	return sessions, nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.client == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
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

var _ storage.Store = (*Store)(nil)
