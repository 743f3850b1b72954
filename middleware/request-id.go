package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loomrelay/gateway/common/ctxkey"
)

// RequestID stamps every request with a fresh UUID, echoed back as a header
// and threaded through to the LogRecord this request eventually produces.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(ctxkey.RequestId, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}
