// Package executor composes prompts, spawns external agent processes, and
// enforces timeouts, fallback chains, and session bookkeeping, grounded on
// the teacher's internal/agent/loop.go run-loop shape and
// internal/tools/shell.go's exec.CommandContext pattern.
package executor

import (
	"time"

	"github.com/google/uuid"
	"github.com/nextlevelbuilder/agentsd/internal/workflow"
)

// NewRunID generates a freshly-generated short id for the execution context,
// grounded on the teacher's pervasive use of google/uuid for run/trace ids.
func NewRunID() string {
	return uuid.NewString()[:8]
}

// BaseContext seeds the execution context with the variables every
// invocation carries per spec.md §4.5: DATE, DATETIME, TIME, RUN_ID.
func BaseContext(now time.Time, runID string) workflow.Context {
	return workflow.Context{
		"DATE":     now.Format("2006-01-02"),
		"DATETIME": now.Format(time.RFC3339),
		"TIME":     now.Format("15:04:05"),
		"RUN_ID":   runID,
	}
}

// WithOverrides layers caller-supplied overrides (PERSONA_NAME,
// WORKFLOW_NAME, SESSION_DIR, FROM_ADDRESS, FROM_CHANNEL, FROM_THREAD, ...)
// onto a base context.
func WithOverrides(base workflow.Context, overrides map[string]string) workflow.Context {
	out := workflow.Context{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// DaemonEnvVars returns the environment variables spec.md §6 requires the
// daemon to set in every spawned agent process.
func DaemonEnvVars(personaName, sessionID, sessionWorkspace, fromAddress string) map[string]string {
	env := map[string]string{
		"DOT_AGENTS_PERSONA":          personaName,
		"DOT_AGENTS_SESSION_ID":       sessionID,
		"DOT_AGENTS_SESSION_WORKSPACE": sessionWorkspace,
		"SESSION_ID":                  sessionID,
		"SESSION_WORKSPACE":           sessionWorkspace,
	}
	if fromAddress != "" {
		env["FROM_ADDRESS"] = fromAddress
	}
	return env
}
