// shared/api/ratelimit.go
package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPRateLimiter hands out one token bucket per client IP. A bucket idle for a whole window has refilled
// completely, so such buckets are dropped on the next sweep; sweeps run at most once per window.
type IPRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	rate      rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter allows requestsPerWindow requests per client over window,
// with bursts of up to half that amount.
func NewIPRateLimiter(requestsPerWindow int, window time.Duration) *IPRateLimiter {
	burst := requestsPerWindow / 2
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		limiters:  make(map[string]*clientLimiter),
		rate:      rate.Limit(float64(requestsPerWindow) / window.Seconds()),
		burst:     burst,
		window:    window,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
	}
	if c, ok := l.limiters[ip]; ok {
		c.lastSeen = now
		return c.limiter
	}
	c := &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst), lastSeen: now}
	l.limiters[ip] = c
	return c.limiter
}

func (l *IPRateLimiter) sweep(now time.Time) {
	for ip, c := range l.limiters {
		if now.Sub(c.lastSeen) >= l.window {
			delete(l.limiters, ip)
		}
	}
	l.lastSweep = now
}

// Allow reports whether a request from ip may proceed now.
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.limiterFor(ip).Allow()
}

// Middleware rejects requests over the limit with 429.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			WriteError(w, http.StatusTooManyRequests, CodeRateLimited, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || ip == "" {
		return r.RemoteAddr
	}
	return ip
}
