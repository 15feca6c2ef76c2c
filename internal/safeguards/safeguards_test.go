package safeguards

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsSelfReplyFailsOpenOnMissingFrom(t *testing.T) {
	require.False(t, IsSelfReply("", "pingbot"))
}

func TestIsSelfReplyDetectsAgentPrefix(t *testing.T) {
	require.True(t, IsSelfReply("agent:pingbot", "pingbot"))
	require.True(t, IsSelfReply("@pingbot", "pingbot"))
	require.False(t, IsSelfReply("agent:other", "pingbot"))
}

func TestRateLimiterCapsWithinWindow(t *testing.T) {
	rl := NewRateLimiter(5, time.Second)

	allowed := 0
	for i := 0; i < 6; i++ {
		if rl.TryInvoke("bot") {
			allowed++
		}
	}
	require.Equal(t, 5, allowed)
}

func TestCircuitBreakerStaysClosedBelowThreshold(t *testing.T) {
	cb := NewCircuitBreaker(10, time.Minute, 5*time.Minute)
	for i := 0; i < 9; i++ {
		cb.RecordFailure()
	}
	state := cb.GetState()
	require.False(t, state.Tripped)
	require.Equal(t, 9, state.FailureCount)
}

func TestCircuitBreakerTripsAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, 5*time.Minute)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	require.True(t, cb.GetState().Tripped)
	require.False(t, cb.Allow())
}

func TestCircuitBreakerSuccessClearsBuffer(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, 5*time.Minute)
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	require.Equal(t, 0, cb.GetState().FailureCount)
}

func TestCircuitBreakerManualReset(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute, time.Hour)
	cb.RecordFailure()
	require.True(t, cb.GetState().Tripped)

	cb.Reset()
	require.False(t, cb.GetState().Tripped)
	require.True(t, cb.Allow())
}
