// Package server wires the session runtime and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/louisbranch/sessiontrack/internal/platform/config"
	"github.com/louisbranch/sessiontrack/internal/platform/logging"
	"github.com/louisbranch/sessiontrack/internal/platform/telemetry/metrics"
	"github.com/louisbranch/sessiontrack/internal/platform/timeouts"
	sessionsapi "github.com/louisbranch/sessiontrack/internal/services/sessions/api/http/sessions"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/auth"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/service"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/storage"
	sessionsredis "github.com/louisbranch/sessiontrack/internal/services/sessions/storage/redis"
	sessionssqlite "github.com/louisbranch/sessiontrack/internal/services/sessions/storage/sqlite"
)

const metricsNamespace = "sessions"

type serverEnv struct {
	Store         string `env:"SESSIONS_STORE"          envDefault:"sqlite"           validate:"oneof=sqlite redis"`
	DBPath        string `env:"SESSIONS_DB_PATH"        envDefault:"data/sessions.db"`
	RedisAddr     string `env:"SESSIONS_REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"SESSIONS_REDIS_PASSWORD"`
	RedisDB       int    `env:"SESSIONS_REDIS_DB"       envDefault:"0"                validate:"gte=0"`
	LogLevel      string `env:"SESSIONS_LOG_LEVEL"      envDefault:"info"             validate:"oneof=debug info warn warning error"`
	LogFormat     string `env:"SESSIONS_LOG_FORMAT"     envDefault:"json"             validate:"oneof=json console"`
}

func loadServerEnv() (serverEnv, error) {
	var cfg serverEnv
	if err := config.ParseAndValidate(&cfg); err != nil {
		return serverEnv{}, err
	}
	return cfg, nil
}

// Server hosts the session HTTP API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      storage.Store
	logger     *zap.Logger
}

// New creates a configured session server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured session server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	return newWithAddr(context.Background(), addr)
}

func newWithAddr(ctx context.Context, addr string) (*Server, error) {
	env, err := loadServerEnv()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:   env.LogLevel,
		Format:  logging.Format(env.LogFormat),
		Service: "sessions",
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	authConfig, err := auth.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewVerifier(authConfig, logger.Named("auth"), nil)
	if err != nil {
		return nil, fmt.Errorf("configure auth: %w", err)
	}
	if verifier.Disabled() {
		logger.Warn("auth verification disabled; every request is admitted")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	store, err := openStore(ctx, env)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	logger.Info("session store opened", zap.String("store", env.Store))

	m := metrics.New(metricsNamespace)
	svc := service.New(store, service.WithObserver(m))

	gin.SetMode(gin.ReleaseMode)
	router := sessionsapi.NewRouter(sessionsapi.Options{
		Service:       svc,
		Authenticator: verifier,
		Logger:        logger.Named("http"),
		Metrics:       m,
	})

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: timeouts.ReadHeader,
			ErrorLog:          zap.NewStdLog(logger.Named("http")),
		},
		store:  store,
		logger: logger,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a session server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	s.logger.Info("sessions server listening", zap.String("addr", s.Addr()))
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases session server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && s.logger != nil {
			s.logger.Error("close session store", zap.Error(err))
		}
		s.store = nil
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
}

func openStore(ctx context.Context, env serverEnv) (storage.Store, error) {
	switch storage.Kind(env.Store) {
	case storage.KindRedis:
		store, err := sessionsredis.Open(ctx, sessionsredis.Options{
			Addr:     env.RedisAddr,
			Password: env.RedisPassword,
			DB:       env.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("open session redis store: %w", err)
		}
		return store, nil
	default:
		store, err := openSQLiteStore(env.DBPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func openSQLiteStore(path string) (*sessionssqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sessionssqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session sqlite store: %w", err)
	}
	return store, nil
}
