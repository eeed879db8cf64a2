package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/albapepper/scoracle-fusion/internal/api/respond"
)

// --------------------------------------------------------------------------
// Request timing middleware
// --------------------------------------------------------------------------

// TimingMiddleware adds an X-Process-Time header to all responses. The
// header is set when the handler first writes, so it reaches the client.
func TimingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&timedWriter{ResponseWriter: w, start: time.Now()}, r)
	})
}

type timedWriter struct {
	http.ResponseWriter
	start   time.Time
	written bool
}

func (t *timedWriter) WriteHeader(status int) {
	if !t.written {
		t.written = true
		elapsed := time.Since(t.start)
		t.Header().Set("X-Process-Time", fmt.Sprintf("%.2fms", float64(elapsed.Microseconds())/1000.0))
	}
	t.ResponseWriter.WriteHeader(status)
}

func (t *timedWriter) Write(b []byte) (int, error) {
	if !t.written {
		t.WriteHeader(http.StatusOK)
	}
	return t.ResponseWriter.Write(b)
}

// --------------------------------------------------------------------------
// Rate limiting middleware (IP-based token bucket)
// --------------------------------------------------------------------------

type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newIPLimiter(requestsPerWindow int, window time.Duration) *ipLimiter {
	rps := float64(requestsPerWindow) / window.Seconds()
	return &ipLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    max(requestsPerWindow/2, 1),
	}
}

func (l *ipLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists := l.limiters[ip]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[ip] = limiter
	return limiter
}

// RateLimitMiddleware returns middleware that rate-limits by client IP.
func RateLimitMiddleware(requestsPerWindow int, window time.Duration) func(http.Handler) http.Handler {
	limiter := newIPLimiter(requestsPerWindow, window)
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, _ := net.SplitHostPort(r.RemoteAddr)
			if ip == "" {
				ip = r.RemoteAddr
			}

			if !limiter.getLimiter(ip).Allow() {
				w.Header().Set("Retry-After", retryAfter)
				respond.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
