package domain

import (
	"fmt"
	"time"

	apperrors "github.com/louisbranch/sessiontrack/internal/platform/errors"
	"github.com/louisbranch/sessiontrack/internal/platform/id"
)

// Session is one tracked session record.
type Session struct {
	SessionID string    `json:"sessionId"`
	Region    string    `json:"region"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Filter narrows a session listing. A nil field means "no constraint".
type Filter struct {
	Status *Status
	Region *string
}

// IsEmpty reports whether the filter has no constraints.
func (f Filter) IsEmpty() bool {
	return f.Status == nil && f.Region == nil
}

// Matches reports whether s satisfies every constraint in f.
func (f Filter) Matches(s Session) bool {
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	if f.Region != nil && s.Region != *f.Region {
		return false
	}
	return true
}

// FetchFunc loads one session by ID. The bool is false when no session exists.
type FetchFunc func(sessionID string) (Session, bool, error)

// UpdateFunc writes a new status and update time for one session and returns
// the stored result. The bool is false when no session exists.
type UpdateFunc func(sessionID string, status Status, updatedAt time.Time) (Session, bool, error)

// ListFunc loads every session matching filter.
type ListFunc func(filter Filter) ([]Session, error)

// CreateSessionInput carries unvalidated create fields.
type CreateSessionInput struct {
	Region any
}

// ListSessionsInput carries unvalidated list filters. A nil field is absent.
type ListSessionsInput struct {
	Status any
	Region any
}

// CreateSession builds a new pending session. It does not persist anything.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	region, err := ValidateRegion(input.Region)
	if err != nil {
		return Session{}, err
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	createdAt := now().UTC()
	return Session{
		SessionID: sessionID,
		Region:    region,
		Status:    StatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// GetSession validates sessionID and returns the session fetch finds for it.
func GetSession(sessionID any, fetch FetchFunc) (Session, error) {
	validID, err := ValidateSessionID(sessionID)
	if err != nil {
		return Session{}, err
	}
	if fetch == nil {
		return Session{}, fmt.Errorf("fetch function is required")
	}

	session, found, err := fetch(validID)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, notFound(validID)
	}
	return session, nil
}

// UpdateSessionStatus validates its inputs, stamps one update time and
// applies the new status through update. Any status may follow any other.
func UpdateSessionStatus(sessionID, status any, now func() time.Time, update UpdateFunc) (Session, error) {
	validID, err := ValidateSessionID(sessionID)
	if err != nil {
		return Session{}, err
	}
	next, err := ValidateStatus(status)
	if err != nil {
		return Session{}, err
	}
	if update == nil {
		return Session{}, fmt.Errorf("update function is required")
	}
	if now == nil {
		now = time.Now
	}

	updatedAt := now().UTC()
	session, found, err := update(validID, next, updatedAt)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, notFound(validID)
	}
	return session, nil
}

// ListSessions validates the provided filters and returns fetch's result as is.
func ListSessions(input ListSessionsInput, fetch ListFunc) ([]Session, error) {
	var filter Filter
	if input.Status != nil {
		status, err := ValidateStatus(input.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = &status
	}
	if input.Region != nil {
		region, err := ValidateRegion(input.Region)
		if err != nil {
			return nil, err
		}
		filter.Region = &region
	}
	if fetch == nil {
		return nil, fmt.Errorf("fetch function is required")
	}
	return fetch(filter)
}

func notFound(sessionID string) error {
	return apperrors.NotFoundf("Session not found: %s", sessionID)
}
