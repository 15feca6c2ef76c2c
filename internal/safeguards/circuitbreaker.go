package safeguards

import (
	"sync"
	"time"
)

// CircuitBreakerState is the external view of a breaker's health, exposed
// via GetState() per spec.md §4.6.
type CircuitBreakerState struct {
	Tripped        bool
	FailureCount   int
	TimeUntilReset time.Duration
}

// CircuitBreaker tracks consecutive failures across all invocations and
// trips when threshold failures occur within window, refusing spawns until
// cooldown elapses or an operator calls Reset. No suitable ecosystem
// breaker library appeared among the retrieved examples, so this is a
// small hand-rolled state machine in the teacher's own
// small-mutable-registry style (internal/gateway's RateLimiter, sibling
// pattern) — see DESIGN.md.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	cooldown  time.Duration

	failures   []time.Time
	trippedAt  time.Time
	isTripped  bool
}

// NewCircuitBreaker returns a breaker that trips after threshold failures
// within window, and stays tripped for cooldown.
func NewCircuitBreaker(threshold int, window, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold, window: window, cooldown: cooldown}
}

// Allow reports whether a new invocation may proceed, auto-resetting the
// breaker if its cooldown has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeAutoReset(time.Now())
	return !b.isTripped
}

// RecordFailure logs a failed invocation and trips the breaker if the
// consecutive-failure threshold is reached within window.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.maybeAutoReset(now)

	b.failures = append(b.failures, now)
	b.pruneOld(now)

	if len(b.failures) >= b.threshold {
		b.isTripped = true
		b.trippedAt = now
	}
}

// RecordSuccess clears the failure buffer.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = nil
}

// Reset manually clears the tripped state and failure buffer, for operator use.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.isTripped = false
	b.failures = nil
	b.trippedAt = time.Time{}
}

// GetState returns the current health snapshot.
func (b *CircuitBreaker) GetState() CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeAutoReset(time.Now())

	var remaining time.Duration
	if b.isTripped {
		remaining = b.cooldown - time.Since(b.trippedAt)
		if remaining < 0 {
			remaining = 0
		}
	}
	return CircuitBreakerState{
		Tripped:        b.isTripped,
		FailureCount:   len(b.failures),
		TimeUntilReset: remaining,
	}
}

func (b *CircuitBreaker) maybeAutoReset(now time.Time) {
	if b.isTripped && now.Sub(b.trippedAt) >= b.cooldown {
		b.isTripped = false
		b.failures = nil
	}
	b.pruneOld(now)
}

func (b *CircuitBreaker) pruneOld(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for ; i < len(b.failures); i++ {
		if b.failures[i].After(cutoff) {
			break
		}
	}
	b.failures = b.failures[i:]
}
