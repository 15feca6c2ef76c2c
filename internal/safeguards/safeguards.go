package safeguards

import "time"

// DefaultRateLimit is spec.md §4.6's default: 5 invocations per 60 seconds.
const DefaultRateLimit = 5

// DefaultRateWindow is spec.md §4.6's default rate-limiter window.
const DefaultRateWindow = 60 * time.Second

// DefaultBreakerThreshold is spec.md §4.6's default consecutive-failure trip count.
const DefaultBreakerThreshold = 10

// DefaultBreakerWindow is spec.md §4.6's default failure-accumulation window.
const DefaultBreakerWindow = 60 * time.Second

// DefaultBreakerCooldown is spec.md §4.6's default tripped-state duration.
const DefaultBreakerCooldown = 5 * time.Minute

// Safeguards bundles the two stateful policies the supervisor consults
// before every persona invocation; the third, self-reply detection, is the
// stateless IsSelfReply.
type Safeguards struct {
	RateLimiter     *RateLimiter
	CircuitBreaker  *CircuitBreaker
}

// New constructs Safeguards with spec.md's documented defaults.
func New() *Safeguards {
	return &Safeguards{
		RateLimiter:    NewRateLimiter(DefaultRateLimit, DefaultRateWindow),
		CircuitBreaker: NewCircuitBreaker(DefaultBreakerThreshold, DefaultBreakerWindow, DefaultBreakerCooldown),
	}
}

// AllowInvocation checks the circuit breaker and then the rate limiter,
// returning a human-readable reason for refusal when either blocks.
func (s *Safeguards) AllowInvocation(personaName string) (bool, string) {
	if !s.CircuitBreaker.Allow() {
		return false, "circuit breaker open"
	}
	if !s.RateLimiter.TryInvoke(personaName) {
		return false, "rate limited"
	}
	return true, ""
}
