package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arklim/practicum-auth/internal/infra/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns a correlation identifier to the request, propagating an
// incoming X-Request-ID when the caller supplied one. The identifier is made
// available on the response header, the request context and the gin keys so
// both access logs and error payloads can carry it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, reqID)
		c.Set("request_id", reqID)

		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey{}, reqID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
