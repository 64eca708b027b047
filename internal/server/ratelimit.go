// ratelimit.go - Sliding-window rate limiter keyed by client IP.
//
// Guards the login endpoint; designed to complement the per-account
// lockout and any proxy-side limits.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// rateLimiter allows rate requests per window for each client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string][]time.Time
	rate     int
	window   time.Duration
	now      func() time.Time
}

// newRateLimiter creates a rate limiter that allows 'rate' requests per 'window'.
// Example: newRateLimiter(20, time.Minute) allows 20 requests per minute per IP.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string][]time.Time),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
}

// middleware answers 429 once a client is over its budget.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow checks if a request from the given IP should be allowed
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.recent(ip, now)
	if len(recent) >= rl.rate {
		rl.visitors[ip] = recent
		return false
	}
	rl.visitors[ip] = append(recent, now)
	return true
}

// recent drops timestamps that fell out of the window. Callers hold mu.
func (rl *rateLimiter) recent(ip string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	reqs := rl.visitors[ip]
	i := 0
	for i < len(reqs) && !reqs[i].After(cutoff) {
		i++
	}
	return reqs[i:]
}

// run removes idle visitors every interval until ctx is done.
func (rl *rateLimiter) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.prune()
		}
	}
}

func (rl *rateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip := range rl.visitors {
		if len(rl.recent(ip, now)) == 0 {
			delete(rl.visitors, ip)
		}
	}
}

// clientIP returns the host part of RemoteAddr. It reflects proxy headers
// only when TrustProxyHeaders installed chi's RealIP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
