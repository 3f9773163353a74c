package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Middleware guards a route. userID returns the authenticated user or "".
func Middleware(l *Limiter, endpoint string, cfg Config, userID func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := ""
		if userID != nil {
			uid = userID(c)
		}
		res := l.Check(c.Request.Context(), Identifier(uid, c.Request.Header), endpoint, cfg)
		if !res.Allowed {
			Reject(c, res)
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		if res.Remaining != nil {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(*res.Remaining))
		}
		c.Next()
	}
}

// Reject writes the 429 response for a denied check.
func Reject(c *gin.Context, res Result) {
	retry := res.RetryAfterSeconds()
	c.Header("Retry-After", strconv.Itoa(retry))
	c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Header("X-RateLimit-Remaining", "0")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"success":     false,
		"error":       "Rate limit exceeded",
		"message":     fmt.Sprintf("Too many requests. Please try again in %d seconds.", retry),
		"retry_after": retry,
	})
}
