package api

import (
	"alcyxob/fitflow/internal/ai"
	"alcyxob/fitflow/internal/domain"
	"alcyxob/fitflow/internal/flow"
	"alcyxob/fitflow/internal/progress"
	"alcyxob/fitflow/internal/repository"
	"alcyxob/fitflow/internal/service"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Constants for context keys and headers
const (
	ContextSessionIDKey = "sessionID"
	SessionHeader       = "X-Session-ID"
)

// RequestLogger logs every request through zap.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 and logs it.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		abortWithError(c, http.StatusInternalServerError, "Internal server error")
	})
}

// SessionMiddleware identifies the browser tab. Tabs send X-Session-ID; a missing one
// is generated and echoed back so the tab can keep it.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(SessionHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(SessionHeader, id)
		c.Set(ContextSessionIDKey, id)
		c.Next()
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// Helper function to get the session ID from context (used by handlers)
func getSessionIDFromContext(c *gin.Context) string {
	if id, ok := c.Get(ContextSessionIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// respondError maps service errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})

	case errors.Is(err, flow.ErrIllegalTransition),
		errors.Is(err, service.ErrGenerationPreconditions),
		errors.Is(err, service.ErrNotTracking),
		errors.Is(err, progress.ErrDayIncomplete),
		errors.Is(err, progress.ErrAlreadyCompletedToday),
		errors.Is(err, progress.ErrCycleComplete):
		abortWithError(c, http.StatusConflict, err.Error())

	case errors.Is(err, progress.ErrInvalidDay), errors.Is(err, progress.ErrInvalidExercise):
		abortWithError(c, http.StatusBadRequest, err.Error())

	case errors.Is(err, service.ErrGenerationFailed):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error(), "reason": generationReason(err)})

	case errors.Is(err, repository.ErrStorageUnavailable):
		abortWithError(c, http.StatusServiceUnavailable, "Could not save your data: storage is unavailable.")

	case errors.Is(err, service.ErrNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())

	default:
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// generationReason is a stable code for the cause of a generation failure.
func generationReason(err error) string {
	switch {
	case errors.Is(err, ai.ErrAuth):
		return "auth"
	case errors.Is(err, ai.ErrQuota):
		return "quota"
	case errors.Is(err, ai.ErrNetwork):
		return "network"
	case errors.Is(err, service.ErrUnparsableResponse):
		return "unparsable-response"
	case errors.Is(err, service.ErrInvalidPlanShape):
		return "invalid-plan-shape"
	case errors.Is(err, repository.ErrStorageUnavailable):
		return "storage-unavailable"
	default:
		return "service"
	}
}
