package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key the request ID is stored
// under.
const ContextKeyRequestID = "request_id"

// RequestIDMiddleware tags every request with an ID, honoring an inbound
// X-Request-ID so callers can correlate across services. The ID is
// echoed on the response and picked up by the envelope metadata.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
