// Package safeguards implements the three cooperating policies that prevent
// runaway agent loops: self-reply detection, a per-persona rate limiter, and
// a circuit breaker.
package safeguards

import "strings"

// IsSelfReply reports whether an incoming message's from header names the
// target persona itself. Failure to parse or a missing from field fails
// open (returns false) — dropping legitimate traffic is worse than an
// occasional loop, which the rate limiter and circuit breaker catch.
func IsSelfReply(from, personaName string) bool {
	if from == "" || personaName == "" {
		return false
	}
	normalized := normalizeFrom(from)
	return normalized == personaName
}

func normalizeFrom(from string) string {
	switch {
	case strings.HasPrefix(from, "agent:"):
		return strings.TrimPrefix(from, "agent:")
	case strings.HasPrefix(from, "@"):
		return strings.TrimPrefix(from, "@")
	default:
		return from
	}
}
