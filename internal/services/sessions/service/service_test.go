package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/louisbranch/sessiontrack/internal/platform/errors"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/domain"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/storage"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	order    []string
	err      error
	calls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]domain.Session{}}
}

func (f *fakeStore) CreateSession(_ context.Context, session domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	if _, ok := f.sessions[session.SessionID]; ok {
		return storage.ErrAlreadyExists
	}
	f.sessions[session.SessionID] = session
	f.order = append(f.order, session.SessionID)
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.Session{}, f.err
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return domain.Session{}, storage.ErrNotFound
	}
	return session, nil
}

func (f *fakeStore) UpdateSessionStatus(_ context.Context, sessionID string, status domain.Status, updatedAt time.Time) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.Session{}, f.err
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return domain.Session{}, storage.ErrNotFound
	}
	session.Status = status
	session.UpdatedAt = updatedAt
	f.sessions[sessionID] = session
	return session, nil
}

func (f *fakeStore) ListSessions(_ context.Context, filter domain.Filter) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Session
	for _, sessionID := range f.order {
		if session := f.sessions[sessionID]; filter.Matches(session) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

type recordingObserver struct {
	mu       sync.Mutex
	observed []string
}

func (r *recordingObserver) ObserveOperation(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed = append(r.observed, operation+":"+outcome)
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func sequentialIDs(ids ...string) func() (string, error) {
	next := 0
	return func() (string, error) {
		if next >= len(ids) {
			return "", errors.New("out of ids")
		}
		value := ids[next]
		next++
		return value, nil
	}
}

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func TestCreatePersistsPendingSession(t *testing.T) {
	store := newFakeStore()
	svc := New(store, WithClock(fixedClock(testNow)), WithIDGenerator(sequentialIDs("s-1")))

	session, err := svc.Create(context.Background(), domain.CreateSessionInput{Region: "  us-east-1 "})
	require.NoError(t, err)
	assert.Equal(t, "s-1", session.SessionID)
	assert.Equal(t, "us-east-1", session.Region)
	assert.Equal(t, domain.StatusPending, session.Status)
	assert.Equal(t, testNow, session.CreatedAt)
	assert.Equal(t, session.CreatedAt, session.UpdatedAt)

	stored, err := store.GetSession(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, session, stored)
}

func TestCreateValidationSkipsStore(t *testing.T) {
	store := newFakeStore()
	svc := New(store)

	_, err := svc.Create(context.Background(), domain.CreateSessionInput{Region: "   "})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeBadRequest, apperrors.CodeOf(err))
	assert.Zero(t, store.calls)
}

func TestCreateStoreFailuresAreInternal(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "duplicate", err: storage.ErrAlreadyExists},
		{name: "backend", err: errors.New("disk full")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.err = tt.err
			svc := New(store, WithIDGenerator(sequentialIDs("s-1")))

			_, err := svc.Create(context.Background(), domain.CreateSessionInput{Region: "eu"})
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))
			assert.Equal(t, InternalMessage, err.Error())
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCreateIDGeneratorFailureIsInternal(t *testing.T) {
	svc := New(newFakeStore(), WithIDGenerator(func() (string, error) {
		return "", errors.New("entropy exhausted")
	}))

	_, err := svc.Create(context.Background(), domain.CreateSessionInput{Region: "eu"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))
	assert.Equal(t, InternalMessage, err.Error())
}

func TestGet(t *testing.T) {
	store := newFakeStore()
	svc := New(store, WithClock(fixedClock(testNow)), WithIDGenerator(sequentialIDs("s-1")))
	created, err := svc.Create(context.Background(), domain.CreateSessionInput{Region: "eu"})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
	assert.Equal(t, "Session not found: missing", err.Error())

	_, err = svc.Get(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeBadRequest, apperrors.CodeOf(err))
}

func TestGetStoreFailureIsInternal(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection reset")
	svc := New(store)

	_, err := svc.Get(context.Background(), "s-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))
	assert.ErrorIs(t, err, store.err)
}

func TestUpdateStatus(t *testing.T) {
	store := newFakeStore()
	later := testNow.Add(time.Hour)
	clock := testNow
	svc := New(store,
		WithClock(func() time.Time { return clock }),
		WithIDGenerator(sequentialIDs("s-1")),
	)
	_, err := svc.Create(context.Background(), domain.CreateSessionInput{Region: "eu"})
	require.NoError(t, err)

	clock = later
	updated, err := svc.UpdateStatus(context.Background(), "s-1", "active")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, updated.Status)
	assert.Equal(t, later, updated.UpdatedAt)
	assert.Equal(t, testNow, updated.CreatedAt)

	// Any status may follow any other.
	back, err := svc.UpdateStatus(context.Background(), "s-1", "pending")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, back.Status)
}

func TestUpdateStatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		sessionID any
		status    any
		code      apperrors.Code
		message   string
	}{
		{name: "blank id", sessionID: "  ", status: "active", code: apperrors.CodeBadRequest, message: "Session ID must be a non-empty string"},
		{name: "unknown status", sessionID: "s-1", status: "paused", code: apperrors.CodeBadRequest, message: "Invalid session status: paused"},
		{name: "missing session", sessionID: "nope", status: "active", code: apperrors.CodeNotFound, message: "Session not found: nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(newFakeStore())
			_, err := svc.UpdateStatus(context.Background(), tt.sessionID, tt.status)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestList(t *testing.T) {
	store := newFakeStore()
	svc := New(store, WithIDGenerator(sequentialIDs("a", "b", "c")))
	ctx := context.Background()
	for _, region := range []string{"eu", "us", "eu"} {
		_, err := svc.Create(ctx, domain.CreateSessionInput{Region: region})
		require.NoError(t, err)
	}
	_, err := svc.UpdateStatus(ctx, "c", "completed")
	require.NoError(t, err)

	all, err := svc.List(ctx, domain.ListSessionsInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, sessionIDs(all))

	eu, err := svc.List(ctx, domain.ListSessionsInput{Region: "eu"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, sessionIDs(eu))

	euCompleted, err := svc.List(ctx, domain.ListSessionsInput{Region: "eu", Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, sessionIDs(euCompleted))

	none, err := svc.List(ctx, domain.ListSessionsInput{Status: "failed"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = svc.List(ctx, domain.ListSessionsInput{Status: "bogus"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeBadRequest, apperrors.CodeOf(err))
}

func TestListStoreFailureIsInternal(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("timeout")
	svc := New(store)

	_, err := svc.List(context.Background(), domain.ListSessionsInput{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))
}

func TestNilStore(t *testing.T) {
	svc := New(nil)
	_, err := svc.Get(context.Background(), "s-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))
}

func TestObserverAndSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	observer := &recordingObserver{}

	svc := New(newFakeStore(),
		WithIDGenerator(sequentialIDs("s-1")),
		WithObserver(observer),
		WithTracerProvider(provider),
	)
	ctx := context.Background()
	_, err := svc.Create(ctx, domain.CreateSessionInput{Region: "eu"})
	require.NoError(t, err)
	_, _ = svc.Get(ctx, "missing")
	_, _ = svc.UpdateStatus(ctx, "s-1", 7)
	_, err = svc.List(ctx, domain.ListSessionsInput{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create:ok",
		"get:not_found",
		"update_status:bad_request",
		"list:ok",
	}, observer.observed)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"sessions.create", "sessions.get", "sessions.list", "sessions.update_status"}, names)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, "internal", Outcome(errors.New("boom")))
	assert.Equal(t, "unauthorized", Outcome(apperrors.Unauthorized("no")))
}

func sessionIDs(sessions []domain.Session) []string {
	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.SessionID)
	}
	return ids
}
