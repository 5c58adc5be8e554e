// Grounded on internal/api/ratelimit.go's stdlib-only per-IP token
// bucket. The refill/eviction machinery is the teacher's unchanged, but
// the bucket now charges a caller-supplied cost per request instead of a
// flat 1 token, since this domain's /ticks endpoint can advance a caller-
// chosen number of economic ticks in one call — charging 1 token
// regardless of n would let a single request do unbounded work under the
// same budget as a no-op GET.
package bffapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const cleanupIdleDuration = 10 * time.Minute

type ipBucket struct {
	tokens   float64
	lastSeen time.Time
	mu       sync.Mutex
}

// RateLimiter enforces a per-IP token bucket.
type RateLimiter struct {
	rate    float64
	burst   float64
	mu      sync.Mutex
	buckets map[string]*ipBucket
}

// NewRateLimiter allows ratePerMin requests per minute per IP, with the
// given burst capacity.
func NewRateLimiter(ratePerMin, burst int) *RateLimiter {
	rl := &RateLimiter{
		rate:    float64(ratePerMin) / 60.0,
		burst:   float64(burst),
		buckets: make(map[string]*ipBucket),
	}
	go rl.cleanupLoop()
	return rl
}

// allow charges cost tokens (minimum 1, so a degenerate cost of 0 still
// consumes the bucket rather than bypassing it) from ip's bucket.
func (rl *RateLimiter) allow(ip string, cost float64) (bool, time.Duration) {
	if cost < 1.0 {
		cost = 1.0
	}

	rl.mu.Lock()
	bucket, ok := rl.buckets[ip]
	if !ok {
		bucket = &ipBucket{tokens: rl.burst}
		rl.buckets[ip] = bucket
	}
	rl.mu.Unlock()

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(bucket.lastSeen).Seconds()
	bucket.tokens += elapsed * rl.rate
	if bucket.tokens > rl.burst {
		bucket.tokens = rl.burst
	}
	bucket.lastSeen = now

	if bucket.tokens >= cost {
		bucket.tokens -= cost
		return true, 0
	}
	retryAfter := time.Duration((cost-bucket.tokens)/rl.rate*1000) * time.Millisecond
	return false, retryAfter
}

// Middleware enforces the rate limit at a flat cost of 1 token per
// request, responding 429 with Retry-After.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return rl.MiddlewareWeighted(func(c *gin.Context) float64 { return 1 })
}

// MiddlewareWeighted charges cost(c) tokens instead of a flat 1, so a
// single request's price reflects the work it actually asks the engine
// to do (e.g. /ticks?n=500 costs 500x what /ticks?n=1 does).
func (rl *RateLimiter) MiddlewareWeighted(cost func(c *gin.Context) float64) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := rl.allow(c.ClientIP(), cost(c))
		if !allowed {
			c.Header("Retry-After", retryAfter.String())
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupIdleDuration)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-cleanupIdleDuration)
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			b.mu.Lock()
			idle := b.lastSeen.Before(cutoff)
			b.mu.Unlock()
			if idle {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}
