package sessions

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/louisbranch/sessiontrack/internal/platform/errors"
	"github.com/louisbranch/sessiontrack/internal/platform/requestctx"
	"github.com/louisbranch/sessiontrack/internal/platform/telemetry/metrics"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/service"
)

const (
	headerRequestID     = "X-Request-ID"
	headerAuthorization = "Authorization"
	maxRequestIDLength  = 128
	tracerName          = "github.com/louisbranch/sessiontrack/internal/services/sessions/api/http/sessions"
)

// requestIDMiddleware echoes the caller's X-Request-ID or assigns a new one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)
		c.Request = c.Request.WithContext(requestctx.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// tracingMiddleware extracts W3C trace context and opens a server span.
func tracingMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("request.id", requestctx.RequestIDFromContext(ctx)),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// metricsMiddleware records request counts and latency by matched route.
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// loggingMiddleware logs one line per completed request.
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.Int("size", c.Writer.Size()),
			zap.String("request_id", requestctx.RequestIDFromContext(c.Request.Context())),
		}
		if principal, ok := requestctx.PrincipalFromContext(c.Request.Context()); ok {
			fields = append(fields, zap.String("subject", principal.Subject), zap.String("auth_mode", string(principal.Mode)))
		}
		logger.Info("request completed", fields...)
	}
}

// recoveryMiddleware turns handler panics into a generic 500.
func recoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Error("panic recovered",
					zap.Any("panic", recovered),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
				)
				writeError(c, logger, fmt.Errorf("panic: %v", recovered))
			}
		}()
		c.Next()
	}
}

// authMiddleware admits requests through authenticator and stores the caller
// in the request context.
func authMiddleware(authenticator Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticator == nil {
			writeError(c, logger, apperrors.Internal(service.InternalMessage, fmt.Errorf("authenticator is not configured")))
			return
		}
		principal, err := authenticator.Verify(c.GetHeader(headerAuthorization))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.Request = c.Request.WithContext(requestctx.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}
