package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/charlesng35/waitlist/pkg/errors"
	"github.com/charlesng35/waitlist/pkg/logger"
	"github.com/charlesng35/waitlist/pkg/response"
)

// RateLimitConfig controls the per-client fixed window limiter.
type RateLimitConfig struct {
	Store    RateStore
	Requests int
	Window   time.Duration
}

// RateLimit limits requests per (clientIP, route) within a fixed window. Counters live in
// the configured RateStore so several instances can share them through Redis or the
// database. When the store fails the request is let through.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	store := cfg.Store
	if store == nil {
		store = NewMemoryRateStore()
	}

	return func(c *gin.Context) {
		if cfg.Requests <= 0 || cfg.Window <= 0 {
			c.Next()
			return
		}
		if c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := "ratelimit:" + c.ClientIP() + "|" + route

		count, ttl, err := store.Increment(c.Request.Context(), key, cfg.Window)
		if err != nil {
			logger.WithModule("ratelimit").Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := cfg.Requests - count
		if remaining < 0 {
			remaining = 0
		}
		if ttl < 0 {
			ttl = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		if count > cfg.Requests {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())+1))
			response.Abort(c, appErrors.ErrRateLimit)
			return
		}

		c.Next()
	}
}
