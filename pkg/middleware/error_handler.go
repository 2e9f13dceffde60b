package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/roadmap-service/pkg/errors"
	"github.com/wms-platform/roadmap-service/pkg/logging"
)

// APIErrorResponse is the body of every error answer
type APIErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	Timestamp string            `json:"timestamp"`
	Path      string            `json:"path"`
}

func newErrorBody(c *gin.Context, code, message string, details map[string]string) APIErrorResponse {
	return APIErrorResponse{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      c.Request.URL.Path,
	}
}

func writeAppError(c *gin.Context, logger *logging.Logger, appErr *errors.AppError) {
	logAppError(logger, c, appErr)
	c.JSON(appErr.HTTPStatus, newErrorBody(c, appErr.Code, appErr.Message, appErr.Details))
}

// AbortWithAppError stops the chain and answers with appErr
func AbortWithAppError(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, newErrorBody(c, appErr.Code, appErr.Message, appErr.Details))
}

// ErrorHandler answers errors attached with c.Error when the handler wrote
// no body itself
func ErrorHandler(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 && !c.Writer.Written() {
			writeAppError(c, logger, errors.MapDomainError(c.Errors.Last().Err))
		}
	}
}

// ErrorResponder writes error answers for one request
type ErrorResponder struct {
	c      *gin.Context
	logger *logging.Logger
}

func NewErrorResponder(c *gin.Context, logger *logging.Logger) *ErrorResponder {
	return &ErrorResponder{c: c, logger: logger}
}

// RespondWithError maps err to an AppError first
func (r *ErrorResponder) RespondWithError(err error) {
	r.RespondWithAppError(errors.MapDomainError(err))
}

func (r *ErrorResponder) RespondWithAppError(appErr *errors.AppError) {
	writeAppError(r.c, r.logger, appErr)
}

func (r *ErrorResponder) RespondValidationError(message string, fields map[string]string) {
	r.RespondWithAppError(errors.ErrValidationWithFields(message, fields))
}

// logAppError logs client errors at warn and server errors at error
func logAppError(logger *logging.Logger, c *gin.Context, appErr *errors.AppError) {
	if logger == nil {
		return
	}

	level := slog.LevelWarn
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		level = slog.LevelError
	}

	attrs := []any{
		"code", appErr.Code,
		"message", appErr.Message,
		"status", appErr.HTTPStatus,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	if appErr.Err != nil {
		attrs = append(attrs, "error", appErr.Err.Error())
	}
	if len(appErr.Details) > 0 {
		attrs = append(attrs, "details", appErr.Details)
	}
	logger.Log(c.Request.Context(), level, "API error", attrs...)
}
