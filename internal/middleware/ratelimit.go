package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/reliefconnect/api/internal/ratelimit"
)

// RateChecker is satisfied by *ratelimit.Limiter.
type RateChecker interface {
	Check(ctx context.Context, clientID, action string) (*ratelimit.CheckResult, error)
}

// RateLimit rejects a client's calls to action once its window is spent.
// Clients are keyed by IP. When the counter store is unreachable the call is
// let through.
func RateLimit(limiter RateChecker, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		result, err := limiter.Check(c.Request.Context(), c.ClientIP(), action)
		if err != nil {
			log.WithError(err).WithField("action", action).Warn("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if result.Limit <= 0 {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", result.ResetAt.UTC().Format(time.RFC3339))

		if !result.Allowed {
			retry := result.RetryAfterSeconds(time.Now())
			c.Header("Retry-After", strconv.FormatInt(retry, 10))
			rateLimitedTotal.WithLabelValues(action).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Bạn đã gửi quá nhiều yêu cầu. Vui lòng thử lại sau.",
				"kind":       "rate_limited",
				"retryAfter": retry,
				"limit":      result.Limit,
			})
			return
		}
		c.Next()
	}
}

// CORS allows browser clients from any origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
