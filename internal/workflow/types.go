// Package workflow loads declarative WORKFLOW.md definitions and expands
// their task body template against an execution context.
package workflow

// Input describes one declared workflow input.
type Input struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type,omitempty"`
	Required    bool          `yaml:"required,omitempty"`
	Default     interface{}   `yaml:"default,omitempty"`
	Enum        []interface{} `yaml:"enum,omitempty"`
	Description string        `yaml:"description,omitempty"`
}

// Output describes one declared workflow output, same shape as Input.
type Output = Input

// Schedule is one cron-triggered entry of a workflow's `on.schedule` list.
type Schedule struct {
	Cron   string                 `yaml:"cron"`
	Inputs map[string]interface{} `yaml:"inputs,omitempty"`
}

// ChannelTrigger fires a workflow whenever a message lands on Channel.
type ChannelTrigger struct {
	Channel string                 `yaml:"channel"`
	Inputs  map[string]interface{} `yaml:"inputs,omitempty"`
}

// Triggers is the set of ways a workflow can fire.
type Triggers struct {
	Schedule   []Schedule      `yaml:"schedule,omitempty"`
	Manual     bool            `yaml:"manual,omitempty"`
	FileChange bool            `yaml:"file_change,omitempty"`
	Webhook    bool            `yaml:"webhook,omitempty"`
	Channel    *ChannelTrigger `yaml:"channel,omitempty"`
}

// RetryPolicy configures re-attempts on executor failure.
type RetryPolicy struct {
	MaxAttempts int    `yaml:"max_attempts,omitempty"`
	Backoff     string `yaml:"backoff,omitempty"`
}

// Workflow is a named unit of work loaded from WORKFLOW.md.
type Workflow struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Persona     string            `yaml:"persona"`
	On          Triggers          `yaml:"on,omitempty"`
	Inputs      []Input           `yaml:"inputs,omitempty"`
	Outputs     []Output          `yaml:"outputs,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	Timeout     string            `yaml:"timeout,omitempty"`
	WorkingDir  string            `yaml:"working_dir,omitempty"`
	Retry       *RetryPolicy      `yaml:"retry,omitempty"`

	// Body is the Markdown task prompt template following the header.
	Body string `yaml:"-"`

	// Path is the filesystem path of WORKFLOW.md this was loaded from.
	Path string `yaml:"-"`
}

// HasChannelTrigger reports whether w fires on messages to a channel.
func (w *Workflow) HasChannelTrigger() bool {
	return w.On.Channel != nil && w.On.Channel.Channel != ""
}
