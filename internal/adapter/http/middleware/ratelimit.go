package middleware

import (
	"context"
	"strconv"
	"time"

	"bharatpay-gateway/internal/adapter/storage/redis"
	"bharatpay-gateway/pkg/apperror"
	"bharatpay-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitStore counts requests per key within a fixed window.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redis.RateLimitResult, error)
}

type rateLimitRule struct {
	limit  int64
	window time.Duration
}

// rateLimitRules maps route groups to their budgets. Merchant endpoints
// that mint state are tighter than reads.
var rateLimitRules = map[string]rateLimitRule{
	"qr_generate": {limit: 100, window: time.Hour},
	"verify":      {limit: 200, window: time.Hour},
	"link_create": {limit: 50, window: time.Hour},
	"admin_login": {limit: 5, window: time.Minute},
	"admin":       {limit: 300, window: time.Minute},
	"public":      {limit: 60, window: time.Minute},
}

// RateLimiter enforces the budget for the named group. Identified clients
// are keyed by their API key prefix, anonymous ones by client IP. Store
// failures degrade open.
func RateLimiter(store RateLimitStore, group string, log zerolog.Logger) gin.HandlerFunc {
	rule, ok := rateLimitRules[group]
	if !ok {
		rule = rateLimitRule{limit: 60, window: time.Minute}
	}

	return func(c *gin.Context) {
		key := extractIdentifier(c) + ":" + group

		result, err := store.Allow(c.Request.Context(), key, rule.limit, rule.window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit store unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			c.Header("Retry-After", strconv.FormatInt(result.ResetAt-time.Now().Unix()+1, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier picks the most specific stable identity available.
func extractIdentifier(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		if len(key) > 12 {
			key = key[:12]
		}
		return key
	}
	if key := c.Query("api_key"); key != "" {
		if len(key) > 12 {
			key = key[:12]
		}
		return key
	}
	return c.ClientIP()
}
