package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimiter pairs a token bucket with the time the client was last
// seen, so idle entries can be evicted.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds a token bucket per client IP. It throttles the
// upload endpoints, where a single misbehaving integration can flood
// the import pipeline.
type RateLimiter struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex

	limit rate.Limit
	burst int

	ticker *time.Ticker
	done   chan struct{}
}

// NewRateLimiter creates a rate limiter allowing perMinute requests
// per client with the given burst capacity.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = perMinute
	}

	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		ticker:  time.NewTicker(5 * time.Minute),
		done:    make(chan struct{}),
	}

	go rl.evictIdle()

	return rl
}

// evictIdle drops limiters for clients not seen in the last 15 minutes
func (rl *RateLimiter) evictIdle() {
	for {
		select {
		case <-rl.ticker.C:
			cutoff := time.Now().Add(-15 * time.Minute)
			rl.mu.Lock()
			for clientID, entry := range rl.clients {
				if entry.lastSeen.Before(cutoff) {
					delete(rl.clients, clientID)
				}
			}
			rl.mu.Unlock()
		case <-rl.done:
			return
		}
	}
}

// Stop stops the rate limiter eviction goroutine
func (rl *RateLimiter) Stop() {
	rl.ticker.Stop()
	close(rl.done)
}

// getLimiter returns the rate limiter for a client
func (rl *RateLimiter) getLimiter(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.clients[clientID]
	if !exists {
		entry = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientID] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter
}

// RateLimit returns a middleware that rate limits requests by client IP
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.getLimiter(c.ClientIP())

		if !limiter.Allow() {
			AbortWithError(c, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				"Too many requests. Please try again later.")
			return
		}

		c.Next()
	}
}
