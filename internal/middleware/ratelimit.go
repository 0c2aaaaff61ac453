package middleware

import (
	"net/http" // HTTP status codes and method names
	"sync"     // Mutex guarding the window map
	"time"     // Window arithmetic

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// rateWindow is one client key's counter within the current fixed window
type rateWindow struct {
	count int       // Requests seen in this window
	start time.Time // When this window opened
}

// RateLimiter bounds write-endpoint request rate per client key using fixed
// time windows. Counters live in process memory only; a restart starts
// everyone fresh, which is acceptable for abuse bounding.
type RateLimiter struct {
	mu      sync.Mutex             // Guards windows
	windows map[string]*rateWindow // Per-key counters
	window  time.Duration          // Fixed window length
	max     int                    // Request ceiling per window
	now     func() time.Time       // Clock, replaceable in tests
}

// NewRateLimiter creates a rate limiter with the given window and ceiling
func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*rateWindow),
		window:  window,
		max:     max,
		now:     time.Now,
	}
}

// Allow records one request for the key and reports whether it is within the
// ceiling. Check and increment happen in one critical section so concurrent
// requests never undercount.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	// First request from this key, or the previous window has elapsed
	if !ok || now.Sub(w.start) >= rl.window {
		rl.windows[key] = &rateWindow{count: 1, start: now}
		return true
	}
	if w.count >= rl.max {
		return false // Ceiling reached within the current window
	}
	w.count++
	return true
}

// Handler returns the rate limiting middleware. It is registered per route
// on write endpoints only; read endpoints pass through untouched even if the
// middleware is attached to a mixed group.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only write methods are bounded
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}
		key := c.ClientIP() // Client key is the source IP
		if !rl.Allow(key) {
			// Log the breach with request context
			logrus.WithFields(logrus.Fields{
				"key":    key,                // Client key
				"path":   c.Request.URL.Path, // Request path
				"method": c.Request.Method,   // Request method
			}).Warn("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "Too many requests"})
			return
		}
		c.Next() // Proceed to the next handler
	}
}

// Cleanup removes windows that have fully elapsed
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if now.Sub(w.start) >= rl.window {
			delete(rl.windows, key)
		}
	}
}

// StartCleanup starts a background goroutine that periodically drops elapsed
// windows so the map does not grow with every client ever seen
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			rl.Cleanup()
		}
	}()
}
