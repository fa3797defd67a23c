package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SessionHeader carries the opaque identity the caller persists across
// restarts. The service never generates one.
const SessionHeader = "X-Session-ID"

const sessionKey = "session_id"

// SessionIdentity requires the session header on every request it
// guards and exposes it to handlers.
func SessionIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := strings.TrimSpace(c.GetHeader(SessionHeader))
		if identity == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "X-Session-ID header required",
			})
			c.Abort()
			return
		}

		c.Set(sessionKey, identity)
		c.Next()
	}
}

// Identity returns the session identity set by SessionIdentity.
func Identity(c *gin.Context) string {
	return c.GetString(sessionKey)
}
