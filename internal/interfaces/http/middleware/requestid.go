// Package middleware holds the gin middleware chain: request IDs, request
// logging with metrics, and CORS.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

// RequestIDHeader is the inbound and outbound request ID header.
const RequestIDHeader = "X-Request-ID"

// RequestID propagates the caller's request ID, minting one when absent.
// The ID rides both the gin context and the request's context.Context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(string(common.ContextKeyRequestID), id)
		ctx := context.WithValue(c.Request.Context(), common.ContextKeyRequestID, id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the request ID set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(string(common.ContextKeyRequestID))
}
