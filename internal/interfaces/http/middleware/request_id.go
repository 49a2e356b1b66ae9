package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/sharedcookie/internal/infrastructure/monitoring"
	"github.com/turtacn/sharedcookie/pkg/constants"
)

const maxRequestIDLength = 128

// RequestID propagates the caller's X-Request-ID or assigns a fresh one.
// The id is echoed in the response and stored on the request context for logging.
// RequestID 传递调用方的 X-Request-ID，或生成新的请求 ID。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(constants.HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}

		c.Set(string(constants.ContextKeyRequestID), id)
		c.Header(constants.HeaderRequestID, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, id))
		c.Next()
	}
}

// TraceID returns the id clients can quote when reporting a failed request:
// the trace id when tracing is active, the request id otherwise.
func TraceID(c *gin.Context) string {
	if id := monitoring.TraceIDFromContext(c.Request.Context()); id != "" {
		return id
	}
	return c.GetString(string(constants.ContextKeyRequestID))
}
