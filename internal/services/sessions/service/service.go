// Package service binds the session lifecycle operations to a storage backend.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/sessiontrack/internal/platform/errors"
	"github.com/louisbranch/sessiontrack/internal/platform/id"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/domain"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/storage"
)

const tracerName = "github.com/louisbranch/sessiontrack/internal/services/sessions/service"

// InternalMessage is the only message clients see for unclassified failures.
const InternalMessage = "Internal Server Error"

// Operation names used for spans and metrics.
const (
	OperationCreate       = "create"
	OperationGet          = "get"
	OperationUpdateStatus = "update_status"
	OperationList         = "list"
)

// OutcomeOK labels a successful operation.
const OutcomeOK = "ok"

// Observer records the outcome of each lifecycle operation.
type Observer interface {
	ObserveOperation(operation, outcome string)
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(generate func() (string, error)) Option {
	return func(s *Service) {
		if generate != nil {
			s.newID = generate
		}
	}
}

// WithObserver reports operation outcomes to observer.
func WithObserver(observer Observer) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

// WithTracerProvider sets the provider used for operation spans.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(s *Service) {
		if provider != nil {
			s.tracer = provider.Tracer(tracerName)
		}
	}
}

// Service runs lifecycle operations against a Store.
type Service struct {
	store    storage.Store
	clock    func() time.Time
	newID    func() (string, error)
	tracer   trace.Tracer
	observer Observer
}

// New creates a Service backed by store.
func New(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		clock:  time.Now,
		newID:  id.NewID,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates input, builds a pending session and persists it.
func (s *Service) Create(ctx context.Context, input domain.CreateSessionInput) (session domain.Session, err error) {
	ctx, finish := s.start(ctx, OperationCreate)
	defer func() { finish(err) }()
	if err := s.ready(); err != nil {
		return domain.Session{}, err
	}

	session, err = domain.CreateSession(input, s.clock, s.newID)
	if err != nil {
		return domain.Session{}, classify(err)
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return domain.Session{}, apperrors.Internal(InternalMessage, fmt.Errorf("create session %s: %w", session.SessionID, err))
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("session.id", session.SessionID))
	return session, nil
}

// Get returns the session identified by sessionID.
func (s *Service) Get(ctx context.Context, sessionID any) (session domain.Session, err error) {
	ctx, finish := s.start(ctx, OperationGet)
	defer func() { finish(err) }()
	if err := s.ready(); err != nil {
		return domain.Session{}, err
	}

	session, err = domain.GetSession(sessionID, func(sessionID string) (domain.Session, bool, error) {
		found, err := s.store.GetSession(ctx, sessionID)
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, false, nil
		}
		if err != nil {
			return domain.Session{}, false, fmt.Errorf("get session %s: %w", sessionID, err)
		}
		return found, true, nil
	})
	if err != nil {
		return domain.Session{}, classify(err)
	}
	return session, nil
}

// UpdateStatus sets a new status on an existing session.
func (s *Service) UpdateStatus(ctx context.Context, sessionID, status any) (session domain.Session, err error) {
	ctx, finish := s.start(ctx, OperationUpdateStatus)
	defer func() { finish(err) }()
	if err := s.ready(); err != nil {
		return domain.Session{}, err
	}

	session, err = domain.UpdateSessionStatus(sessionID, status, s.clock, func(sessionID string, status domain.Status, updatedAt time.Time) (domain.Session, bool, error) {
		updated, err := s.store.UpdateSessionStatus(ctx, sessionID, status, updatedAt)
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, false, nil
		}
		if err != nil {
			return domain.Session{}, false, fmt.Errorf("update session %s: %w", sessionID, err)
		}
		return updated, true, nil
	})
	if err != nil {
		return domain.Session{}, classify(err)
	}
	return session, nil
}

// List returns the sessions matching the provided filters.
func (s *Service) List(ctx context.Context, input domain.ListSessionsInput) (sessions []domain.Session, err error) {
	ctx, finish := s.start(ctx, OperationList)
	defer func() { finish(err) }()
	if err := s.ready(); err != nil {
		return nil, err
	}

	sessions, err = domain.ListSessions(input, func(filter domain.Filter) ([]domain.Session, error) {
		listed, err := s.store.ListSessions(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		return listed, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("sessions.count", len(sessions)))
	return sessions, nil
}

func (s *Service) ready() error {
	if s == nil || s.store == nil {
		return apperrors.Internal(InternalMessage, errors.New("session store is not configured"))
	}
	return nil
}

// start opens the operation span and returns a func that closes it and
// records the outcome.
func (s *Service) start(ctx context.Context, operation string) (context.Context, func(error)) {
	tracer := otel.Tracer(tracerName)
	if s != nil && s.tracer != nil {
		tracer = s.tracer
	}
	ctx, span := tracer.Start(ctx, "sessions."+operation,
		trace.WithAttributes(attribute.String("sessions.operation", operation)))
	return ctx, func(err error) {
		outcome := OutcomeOK
		if err != nil {
			outcome = Outcome(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
		}
		span.SetAttributes(attribute.String("sessions.outcome", outcome))
		span.End()
		if s != nil && s.observer != nil {
			s.observer.ObserveOperation(operation, outcome)
		}
	}
}

// Outcome returns the metrics label for err.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return strings.ToLower(string(apperrors.CodeOf(err)))
}

// classify keeps taxonomy errors and hides everything else behind Internal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Internal(InternalMessage, err)
}
