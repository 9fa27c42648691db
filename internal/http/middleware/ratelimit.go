package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// How long an idle bucket survives before the sweep drops it, and how often
// the sweep runs (piggybacked on bucket lookups, no background goroutine).
const (
	bucketIdleTTL = 5 * time.Minute
	sweepInterval = time.Minute
)

// TokenRateLimiter throttles the OAuth token endpoint. The voice platform
// authenticates every grant with a client id, so buckets key on the presented
// client id; requests without one (probes, misconfigured callers) fall back
// to a per-IP bucket so they cannot drain the platform's budget.
type TokenRateLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	buckets   map[string]*tokenBucket
	lastSweep time.Time
}

type tokenBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenRateLimiter creates a limiter for the requests-per-minute budget.
// A non-positive budget disables throttling.
func NewTokenRateLimiter(requestsPerMinute int) *TokenRateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &TokenRateLimiter{
		limit:   rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:   burst,
		buckets: make(map[string]*tokenBucket),
	}
}

// Handler returns the gin middleware enforcing the budget.
func (l *TokenRateLimiter) Handler() gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if !l.bucketFor(bucketKey(c)).Allow() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limited",
				"error_description": "Too many token requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}

// bucketKey prefers the authenticated client identity over the caller's
// address. ParseForm is idempotent, so reading client_id here does not
// interfere with the handler's own form binding.
func bucketKey(c *gin.Context) string {
	if id, _, ok := c.Request.BasicAuth(); ok && id != "" {
		return "client:" + id
	}
	if id := c.PostForm("client_id"); id != "" {
		return "client:" + id
	}
	return "ip:" + c.ClientIP()
}

func (l *TokenRateLimiter) bucketFor(key string) *rate.Limiter {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > sweepInterval {
		for key, bucket := range l.buckets {
			if now.Sub(bucket.lastSeen) > bucketIdleTTL {
				delete(l.buckets, key)
			}
		}
		l.lastSweep = now
	}

	if bucket, ok := l.buckets[key]; ok {
		bucket.lastSeen = now
		return bucket.limiter
	}

	bucket := &tokenBucket{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.buckets[key] = bucket
	return bucket.limiter
}
