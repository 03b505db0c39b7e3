package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// maxClients caps the number of tracked clients to prevent memory
// exhaustion. At roughly 100 bytes per client this is about 1MB.
const maxClients = 10000

// RateLimiter implements a token bucket rate limiter per IP.
type RateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*client
	rate       int           // requests per window
	window     time.Duration // time window
	cleanup    time.Duration // cleanup interval for stale entries
	trustProxy bool          // whether to trust X-Forwarded-For headers
	stopCh     chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

type client struct {
	tokens    int
	lastReset time.Time
}

// NewRateLimiter creates a new rate limiter.
// rate: maximum requests per window
// window: time window for rate limiting
// trustProxy: whether to trust X-Forwarded-For and X-Real-IP headers
func NewRateLimiter(rate int, window time.Duration, trustProxy bool) *RateLimiter {
	rl := &RateLimiter{
		clients:    make(map[string]*client),
		rate:       rate,
		window:     window,
		cleanup:    5 * time.Minute,
		trustProxy: trustProxy,
		stopCh:     make(chan struct{}),
	}

	rl.wg.Add(1)
	go func() {
		defer rl.wg.Done()
		rl.cleanupRoutine()
	}()

	return rl
}

// Allow checks if a request from the given IP is allowed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, exists := rl.clients[ip]

	if !exists {
		if len(rl.clients) >= maxClients {
			rl.evictOldest()
		}

		rl.clients[ip] = &client{
			tokens:    rl.rate - 1,
			lastReset: now,
		}
		return true
	}

	if now.Sub(c.lastReset) >= rl.window {
		c.tokens = rl.rate - 1
		c.lastReset = now
		return true
	}

	if c.tokens > 0 {
		c.tokens--
		return true
	}

	return false
}

// cleanupRoutine removes stale client entries.
func (rl *RateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStale()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanupStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	staleThreshold := 2 * rl.window

	for ip, c := range rl.clients {
		if now.Sub(c.lastReset) > staleThreshold {
			delete(rl.clients, ip)
		}
	}
}

// evictOldest removes the oldest client entry to make room for new ones.
// Must be called while holding rl.mu.
func (rl *RateLimiter) evictOldest() {
	if len(rl.clients) == 0 {
		return
	}

	var oldestIP string
	var oldestTime time.Time
	first := true

	for ip, c := range rl.clients {
		if first || c.lastReset.Before(oldestTime) {
			oldestIP = ip
			oldestTime = c.lastReset
			first = false
		}
	}

	if oldestIP != "" {
		delete(rl.clients, oldestIP)
	}
}

// Close stops the cleanup routine and waits for it to finish. Safe to
// call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.stopCh)
		rl.wg.Wait()
	})
}

// GetClientIP extracts the client IP from the request.
func (rl *RateLimiter) GetClientIP(r *http.Request) string {
	return getClientIP(r, rl.trustProxy)
}

// RateLimiterMiddleware wraps RateLimiter with cleanup support for
// graceful shutdown. Create it once during server initialization and
// reuse the handler for all routes, otherwise each route gets its own
// counters. Call Close() on shutdown to stop the cleanup goroutine.
type RateLimiterMiddleware struct {
	limiter *RateLimiter
	handler func(http.Handler) http.Handler
}

// Close stops the rate limiter's cleanup routine.
func (m *RateLimiterMiddleware) Close() {
	if m.limiter != nil {
		m.limiter.Close()
	}
}

// Handler returns the middleware handler function.
func (m *RateLimiterMiddleware) Handler() func(http.Handler) http.Handler {
	return m.handler
}

// NewRateLimitMiddleware creates a rate limiter middleware.
// trustProxy: set to true only if running behind a trusted reverse
// proxy. Enabling it otherwise lets attackers bypass rate limiting by
// spoofing X-Forwarded-For headers.
func NewRateLimitMiddleware(requestsPerMinute int, trustProxy bool) *RateLimiterMiddleware {
	limiter := NewRateLimiter(requestsPerMinute, time.Minute, trustProxy)

	m := &RateLimiterMiddleware{
		limiter: limiter,
	}

	m.handler = func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			ip := limiter.GetClientIP(r)

			if !limiter.Allow(ip) {
				w.Header().Set("Retry-After", "60")
				writeErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", startTime)
				return
			}

			next.ServeHTTP(w, r)
		})
	}

	return m
}

// normalizeIP validates and normalizes an IP address string. IPv4
// mapped IPv6 addresses collapse to their IPv4 form so spoofing with
// address variations cannot split a client across buckets.
func normalizeIP(ipStr string) string {
	ipStr = strings.TrimSpace(ipStr)
	if ipStr == "" {
		return ""
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ipStr
	}

	if ip4 := ip.To4(); ip4 != nil {
		return ip4.String()
	}

	return ip.String()
}

// getClientIP extracts the client IP from the request.
// When trustProxy is false (default), only RemoteAddr is used to prevent IP spoofing.
// When trustProxy is true, X-Forwarded-For and X-Real-IP headers are checked first.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// Take the first IP (leftmost = original client)
			var ipStr string
			if idx := strings.Index(xff, ","); idx > 0 {
				ipStr = xff[:idx]
			} else {
				ipStr = xff
			}
			normalized := normalizeIP(ipStr)
			if normalized != "" {
				return normalized
			}
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			normalized := normalizeIP(xri)
			if normalized != "" {
				return normalized
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return normalizeIP(ip)
}
