// Package sessions exposes the session lifecycle over HTTP.
package sessions

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/louisbranch/sessiontrack/internal/platform/requestctx"
	"github.com/louisbranch/sessiontrack/internal/platform/telemetry/metrics"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/domain"
)

// Route paths.
const (
	PathSessions = "/sessions"
	PathStatus   = "/sessions/status"
	PathHealth   = "/healthz"
	PathMetrics  = "/metrics"
)

const (
	queryKeySessionID = "sessionId"
	queryKeyStatus    = "status"
	queryKeyRegion    = "region"
)

// Service is the lifecycle API the handlers call.
type Service interface {
	Create(ctx context.Context, input domain.CreateSessionInput) (domain.Session, error)
	Get(ctx context.Context, sessionID any) (domain.Session, error)
	UpdateStatus(ctx context.Context, sessionID, status any) (domain.Session, error)
	List(ctx context.Context, input domain.ListSessionsInput) ([]domain.Session, error)
}

// Authenticator admits a request by its Authorization header.
type Authenticator interface {
	Verify(header string) (requestctx.Principal, error)
}

// Options wires a router.
type Options struct {
	Service       Service
	Authenticator Authenticator
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

type handler struct {
	service Service
	logger  *zap.Logger
}

type createRequest struct {
	Region any `json:"region"`
}

type updateStatusRequest struct {
	SessionID any `json:"sessionId"`
	Status    any `json:"status"`
}

// NewRouter builds the gin engine serving the session API.
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{service: opts.Service, logger: logger}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(
		requestIDMiddleware(),
		tracingMiddleware(),
		metricsMiddleware(opts.Metrics),
		loggingMiddleware(logger),
		recoveryMiddleware(logger),
	)
	engine.NoRoute(func(c *gin.Context) {
		writeStatus(c, http.StatusNotFound, "Not Found")
	})
	engine.NoMethod(func(c *gin.Context) {
		writeStatus(c, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	engine.GET(PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		engine.GET(PathMetrics, gin.WrapH(opts.Metrics.Handler()))
	}

	api := engine.Group("", authMiddleware(opts.Authenticator, logger))
	api.POST(PathSessions, h.create)
	api.GET(PathSessions, h.getOrList)
	api.PUT(PathSessions, h.updateStatus)
	api.PUT(PathStatus, h.updateStatus)
	api.POST(PathStatus, h.updateStatus)
	return engine
}

func (h *handler) create(c *gin.Context) {
	var req createRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	session, err := h.service.Create(c.Request.Context(), domain.CreateSessionInput{Region: req.Region})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// getOrList serves Get when the sessionId key is present and List otherwise.
func (h *handler) getOrList(c *gin.Context) {
	if sessionID, ok := c.GetQuery(queryKeySessionID); ok {
		session, err := h.service.Get(c.Request.Context(), sessionID)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, session)
		return
	}

	var input domain.ListSessionsInput
	if status, ok := c.GetQuery(queryKeyStatus); ok {
		input.Status = status
	}
	if region, ok := c.GetQuery(queryKeyRegion); ok {
		input.Region = region
	}
	sessions, err := h.service.List(c.Request.Context(), input)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *handler) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	session, err := h.service.UpdateStatus(c.Request.Context(), req.SessionID, req.Status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// bindJSON decodes the request body into target. An empty body leaves target
// zero so field validation reports what is missing.
func bindJSON(c *gin.Context, logger *zap.Logger, target any) bool {
	err := c.ShouldBindJSON(target)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(c, logger, errInvalidJSON(err))
	return false
}
