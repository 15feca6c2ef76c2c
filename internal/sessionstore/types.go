// Package sessionstore creates and finalizes auditable session records,
// grounded on the teacher's internal/sessions/manager.go persistence
// pattern but adapted to spec's directory-per-invocation shape: each
// session is `sessions/<sessionId>/session.md`, a frontmatter file rather
// than the teacher's single JSON blob per key.
package sessionstore

// ExecutionMode is how the invocation's subprocess was spawned.
type ExecutionMode string

const (
	ModeInteractive ExecutionMode = "interactive"
	ModeHeadless    ExecutionMode = "headless"
)

// TriggerType is what caused the invocation.
type TriggerType string

const (
	TriggerManual  TriggerType = "manual"
	TriggerCron    TriggerType = "cron"
	TriggerDM      TriggerType = "dm"
	TriggerChannel TriggerType = "channel"
)

// Result is the outcome recorded on finalize.
type Result struct {
	Success  bool   `yaml:"success"`
	ExitCode int    `yaml:"exitCode"`
	Duration string `yaml:"duration"`
	Error    string `yaml:"error,omitempty"`
}

// Header is the YAML header of session.md.
type Header struct {
	Hostname      string        `yaml:"hostname"`
	ExecutionMode ExecutionMode `yaml:"executionMode"`
	TriggerType   TriggerType   `yaml:"triggerType"`
	WorkingDir    string        `yaml:"workingDir"`
	Goal          string        `yaml:"goal,omitempty"`
	Upstream      string        `yaml:"upstream,omitempty"`
	Persona       string        `yaml:"persona,omitempty"`
	Workflow      string        `yaml:"workflow,omitempty"`
	Started       string        `yaml:"started"`
	Ended         string        `yaml:"ended,omitempty"`
	Result        *Result       `yaml:"result,omitempty"`
}

// Session is an in-progress or finalized session record.
type Session struct {
	ID     string
	Dir    string
	Header Header
	// Transcript accumulates the human-readable body text.
	Transcript string
}
