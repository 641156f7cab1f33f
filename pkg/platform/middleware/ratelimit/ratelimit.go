// Package ratelimit throttles requests per client address with an in-memory
// sliding window. It is not distributed; each replica counts on its own.
package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"loanflow/pkg/platform/httputil"
)

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter admits at most limit requests per key within window.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string][]time.Time
	now     func() time.Time
}

// New returns a limiter. A limit of zero or less admits everything.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records a request for key when it fits in the window.
func (l *Limiter) Allow(key string) Result {
	if l.limit <= 0 {
		return Result{Allowed: true}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := prune(l.buckets[key], now.Add(-l.window))
	if len(stamps) >= l.limit {
		l.buckets[key] = stamps
		return Result{Limit: l.limit, ResetAt: stamps[0].Add(l.window)}
	}
	stamps = append(stamps, now)
	l.buckets[key] = stamps
	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(stamps),
		ResetAt:   stamps[0].Add(l.window),
	}
}

// prune drops timestamps at or before cutoff.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	if i == len(stamps) {
		return stamps[:0]
	}
	return stamps[i:]
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}

// Middleware rejects requests over the limit with 429. It keys on
// RemoteAddr, so it belongs after chi's RealIP.
func Middleware(l *Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.Allow(clientKey(r.RemoteAddr))
			if res.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			}
			if !res.Allowed {
				retry := max(int(time.Until(res.ResetAt).Seconds())+1, 1)
				logger.WarnContext(r.Context(), "rate limit exceeded", "path", r.URL.Path, "retry_after", retry)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				httputil.WriteJSON(w, http.StatusTooManyRequests, errorResponse{
					Error:            "rate_limit_exceeded",
					ErrorDescription: "too many requests from this client",
					RetryAfter:       retry,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
