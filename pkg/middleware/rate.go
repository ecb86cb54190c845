// Package middleware provides the HTTP middleware chain used by the server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tiendalabs/tienda/pkg/response"
)

// bucket tracks a fixed-window request count for one client.
type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

func (b *bucket) allow(max int, window time.Duration) (ok bool, retryIn time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.After(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(window)
	}

	b.count++
	return b.count <= max, time.Until(b.resetAt)
}

// Limiter holds per-client buckets and evicts expired ones in the background.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	max     int
	window  time.Duration
}

// NewLimiter creates a limiter allowing max requests per window per client.
func NewLimiter(max int, window time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		max:     max,
		window:  window,
	}
	go l.evict()
	return l
}

// evict drops buckets whose window has expired. Runs every minute to keep
// memory bounded on long-running servers.
func (l *Limiter) evict() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		l.mu.Lock()
		for key, b := range l.buckets {
			b.mu.Lock()
			expired := now.After(b.resetAt)
			b.mu.Unlock()
			if expired {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}

func (l *Limiter) bucket(key string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		return b
	}
	b := &bucket{resetAt: time.Now().Add(l.window)}
	l.buckets[key] = b
	return b
}

// Middleware enforces the limit keyed by client IP.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			ip = strings.SplitN(fwd, ",", 2)[0]
		}

		ok, retryIn := l.bucket(ip).allow(l.max, l.window)
		if !ok {
			response.TooManyRequests(w, strconv.Itoa(int(retryIn.Seconds())+1))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimit is a convenience wrapper: a fresh limiter as a chi-style middleware.
// Example: r.Use(middleware.RateLimit(100, time.Minute))
func RateLimit(max int, window time.Duration) func(http.Handler) http.Handler {
	return NewLimiter(max, window).Middleware
}
