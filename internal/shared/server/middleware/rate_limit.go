package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// RateLimitRule is a token bucket: Rate tokens per second, up to Burst.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

// RateLimitConfig limits requests per principal. The principal is the
// session in the route (":id") when present, otherwise the client IP.
type RateLimitConfig struct {
	Rule    RateLimitRule
	Scope   string
	Limiter *RateLimiter
}

const (
	defaultLimiterCapacity = 4096
	defaultLimiterIdle     = time.Hour
)

// RateLimiter keeps one rate.Limiter per key in a bounded, expiring cache.
// An evicted key starts again with a full bucket.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	now      func() time.Time
}

// NewRateLimiter builds a limiter with the default capacity; now defaults to time.Now.
func NewRateLimiter(now func() time.Time) *RateLimiter {
	return NewRateLimiterSize(defaultLimiterCapacity, defaultLimiterIdle, now)
}

// NewRateLimiterSize builds a limiter holding at most capacity keys, each
// dropped ttl after it was first seen.
func NewRateLimiterSize(capacity int, ttl time.Duration, now func() time.Time) *RateLimiter {
	if capacity <= 0 {
		capacity = defaultLimiterCapacity
	}
	if ttl <= 0 {
		ttl = defaultLimiterIdle
	}
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](capacity, nil, ttl),
		now:      now,
	}
}

// Len reports how many keys are tracked.
func (l *RateLimiter) Len() int {
	return l.limiters.Len()
}

// RateLimit rejects requests over the configured rule with 429 and Retry-After.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	scope := strings.TrimSpace(cfg.Scope)
	if scope == "" {
		scope = "default"
	}
	return func(c *gin.Context) {
		principal := strings.TrimSpace(c.Param("id"))
		if principal == "" {
			principal = c.ClientIP()
		}
		allowed, retryAfter := cfg.Limiter.Allow(scope+"|"+principal, cfg.Rule)
		if allowed {
			c.Next()
			return
		}
		retryAfterMs := int(retryAfter / time.Millisecond)
		if retryAfterMs <= 0 {
			retryAfterMs = 1000
		}
		retryAfterSeconds := int(math.Ceil(float64(retryAfterMs) / 1000.0))
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": gin.H{
				"code":    "rate_limited",
				"message": "Too many requests, slow down",
				"details": gin.H{"retryAfterMs": retryAfterMs},
			},
		})
	}
}

// Allow takes a token from the key's bucket, or reports how long until one is available.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	now := l.now()
	lim := l.limiter(key, rule, now)

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return false, 0
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return false, wait
	}
	return true, 0
}

func (l *RateLimiter) limiter(key string, rule RateLimitRule, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limit := rate.Limit(rule.Rate)
	if lim, ok := l.limiters.Get(key); ok {
		if lim.Limit() != limit {
			lim.SetLimitAt(now, limit)
		}
		if lim.Burst() != rule.Burst {
			lim.SetBurstAt(now, rule.Burst)
		}
		return lim
	}
	lim := rate.NewLimiter(limit, rule.Burst)
	l.limiters.Add(key, lim)
	return lim
}
