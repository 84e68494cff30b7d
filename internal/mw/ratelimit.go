package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"parking-garage-backend/internal/clock"
)

// TimestampLayout is the format of timestamps in JSON error bodies.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const limiterIdleTTL = 10 * time.Minute

// IPRateLimiter keeps one token bucket per client IP. Buckets of clients that
// stay quiet for a while are dropped.
type IPRateLimiter struct {
	ips *cache.Cache
	mu  sync.Mutex
	r   rate.Limit
	b   int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: cache.New(limiterIdleTTL, limiterIdleTTL),
		r:   r,
		b:   b,
	}
}

// GetLimiter returns the rate limiter for an IP address, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	if v, ok := i.ips.Get(ip); ok {
		limiter := v.(*rate.Limiter)
		i.ips.SetDefault(ip, limiter)
		return limiter
	}
	limiter := rate.NewLimiter(i.r, i.b)
	i.ips.SetDefault(ip, limiter)
	return limiter
}

// RateLimiter is a middleware for IP-based rate limiting. clk stamps the 429
// body; nil means the system clock.
func RateLimiter(r rate.Limit, b int, clk clock.Clock) gin.HandlerFunc {
	if clk == nil {
		clk = clock.NewSystem()
	}
	limiter := NewIPRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":    http.StatusTooManyRequests,
				"error":     "TOO_MANY_REQUESTS",
				"message":   "rate limit exceeded",
				"path":      c.Request.URL.Path,
				"timestamp": clk.Now().UTC().Format(TimestampLayout),
			})
			return
		}
		c.Next()
	}
}
