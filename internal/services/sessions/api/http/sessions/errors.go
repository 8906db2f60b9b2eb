package sessions

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/louisbranch/sessiontrack/internal/platform/errors"
	"github.com/louisbranch/sessiontrack/internal/platform/requestctx"
	"github.com/louisbranch/sessiontrack/internal/services/sessions/service"
)

const codeMethodNotAllowed = "METHOD_NOT_ALLOWED"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func errInvalidJSON(cause error) error {
	return apperrors.Wrap(apperrors.CodeBadRequest, "Invalid JSON body", cause)
}

// writeError renders err with its taxonomy status. Unclassified errors
// become a generic 500 and are logged with their cause.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal(service.InternalMessage, err)
	}
	status := appErr.StatusCode()
	message := appErr.Message
	if appErr.Code == apperrors.CodeInternal {
		message = service.InternalMessage
	}

	fields := []zap.Field{
		zap.String("code", string(appErr.Code)),
		zap.String("request_id", requestctx.RequestIDFromContext(c.Request.Context())),
		zap.Error(err),
	}
	for key, value := range appErr.Metadata {
		fields = append(fields, zap.String("meta."+key, value))
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Debug("request rejected", fields...)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: string(appErr.Code)})
}

// writeStatus renders a routing failure that has no taxonomy error.
func writeStatus(c *gin.Context, status int, message string) {
	code := string(apperrors.CodeNotFound)
	if status == http.StatusMethodNotAllowed {
		code = codeMethodNotAllowed
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code})
}
