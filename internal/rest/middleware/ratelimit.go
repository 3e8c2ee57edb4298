package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/numbrly/portal/internal/config"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/types"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware throttles each caller with a token bucket. Idle
// buckets are evicted after ten minutes.
func RateLimitMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	if !cfg.RateLimit.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	limiters := gocache.New(10*time.Minute, 10*time.Minute)
	limit := rate.Limit(cfg.RateLimit.RPS)
	burst := cfg.RateLimit.Burst

	limiterFor := func(key string) *rate.Limiter {
		if l, ok := limiters.Get(key); ok {
			limiters.SetDefault(key, l)
			return l.(*rate.Limiter)
		}
		l := rate.NewLimiter(limit, burst)
		// a concurrent first request may win; both then share its bucket
		if err := limiters.Add(key, l, gocache.DefaultExpiration); err != nil {
			if existing, ok := limiters.Get(key); ok {
				return existing.(*rate.Limiter)
			}
		}
		return l
	}

	return func(c *gin.Context) {
		key := types.GetUserID(c.Request.Context())
		if key == "" {
			key = c.ClientIP()
		}

		if !limiterFor(key).Allow() {
			c.Error(ierr.NewError("rate limit exceeded").
				WithHint("Too many requests, slow down").
				WithReportableDetails(map[string]any{"rps": cfg.RateLimit.RPS}).
				Mark(ierr.ErrRateLimited))
			c.Abort()
			return
		}
		c.Next()
	}
}
