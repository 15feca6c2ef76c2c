package safeguards

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a sliding-window invocation counter per persona name,
// approximated with a token bucket per key (golang.org/x/time/rate,
// reshaped from the teacher's per-channel throttling use in
// internal/gateway). Window state lives only in-process; a restart clears
// it, matching spec.md §4.6.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    int
	window   time.Duration
}

// NewRateLimiter returns a limiter allowing up to limit invocations per
// window, per key.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: map[string]*rate.Limiter{},
		limit:    limit,
		window:   window,
	}
}

// TryInvoke atomically checks and records one invocation attempt for name.
// Returns false when the caller is over the limit.
func (r *RateLimiter) TryInvoke(name string) bool {
	r.mu.Lock()
	l, ok := r.limiters[name]
	if !ok {
		l = rate.NewLimiter(rate.Every(r.window/time.Duration(r.limit)), r.limit)
		r.limiters[name] = l
	}
	r.mu.Unlock()

	return l.Allow()
}

// Reset clears all per-key state, for tests and operator use.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters = map[string]*rate.Limiter{}
}
