package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/tutorgate/tutorgate/internal/ratelimit"
)

// RateLimitHeaders attaches the caller's minute-window budget to every
// response. Describe is read-only, so this never charges quota; actual
// admission happens once inside the gateway.
func RateLimitHeaders(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := Identity(c)
		if identity == "" {
			c.Next()
			return
		}

		// Headers reflect the budget before this request; they have to
		// be written before the handler starts the response body.
		usage, err := limiter.Describe(c.Request.Context(), identity)
		if err == nil {
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", usage.Minute.Limit))
			c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", usage.Minute.Remaining))
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", usage.Minute.ResetInMs/1000))
		}

		c.Next()
	}
}
