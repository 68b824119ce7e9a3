package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/ielts-mock/internal/validator"
)

// ContextKeyRequestID is the Gin context key for the request ID.
const ContextKeyRequestID = "request_id"

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

const requestIDRules = "min=8,max=64,key_safe,excludes=@"

// RequestIDMiddleware tags every request with an ID. A well-formed
// X-Request-ID from the client is kept so logs can be joined with the
// caller's; anything else is replaced.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" || validator.Var(reqID, requestIDRules) != nil {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header(HeaderRequestID, reqID)
		c.Next()
	}
}

// RequestID returns the request's ID, minting one when the middleware did
// not run.
func RequestID(c *gin.Context) string {
	if id := c.GetString(ContextKeyRequestID); id != "" {
		return id
	}
	id := uuid.New().String()
	c.Set(ContextKeyRequestID, id)
	return id
}
