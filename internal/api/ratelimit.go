package api

import (
	"net/http"
	"sync"
	"time"
)

// authRateLimiter is a fixed one-minute window counter keyed by action and
// client IP. The whole table resets when the minute rolls over.
type authRateLimiter struct {
	enabled bool
	limits  map[string]int
	now     func() time.Time

	mu       sync.Mutex
	window   int64
	counters map[string]int
}

func newAuthRateLimiter(cfg RateLimitPolicy) *authRateLimiter {
	l := &authRateLimiter{
		enabled: cfg.Enabled,
		limits: map[string]int{
			"admin": cfg.AdminPerMinute,
		},
		now:      time.Now,
		counters: make(map[string]int),
	}
	l.window = l.minute()
	return l
}

func (l *authRateLimiter) Allow(r *http.Request, action string) bool {
	if l == nil || !l.enabled {
		return true
	}
	limit := l.limits[action]
	if limit <= 0 {
		return true
	}
	key := action + "|" + requestRemoteIP(r)

	l.mu.Lock()
	defer l.mu.Unlock()
	if w := l.minute(); w != l.window {
		l.window = w
		l.counters = make(map[string]int)
	}
	l.counters[key]++
	return l.counters[key] <= limit
}

func (l *authRateLimiter) minute() int64 {
	return l.now().UTC().Unix() / 60
}
