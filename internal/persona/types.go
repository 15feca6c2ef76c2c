// Package persona loads and resolves persona definitions along a
// directory-structured inheritance graph.
package persona

import "fmt"

// CommandSpec is the raw, as-authored command field: a single string, an
// ordered fallback sequence, or a structured {headless, interactive} object.
// Exactly one of the three shapes is populated after YAML unmarshal.
type CommandSpec struct {
	single      string
	sequence    []string
	headless    []string
	interactive []string
	structured  bool
}

// UnmarshalYAML accepts any of the three documented shapes for `cmd`.
func (c *CommandSpec) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		c.single = s
		return nil
	}

	var seq []string
	if err := unmarshal(&seq); err == nil {
		c.sequence = seq
		return nil
	}

	var obj struct {
		Headless    interface{} `yaml:"headless"`
		Interactive interface{} `yaml:"interactive"`
	}
	if err := unmarshal(&obj); err != nil {
		return fmt.Errorf("persona: cmd: unrecognized shape: %w", err)
	}

	c.structured = true
	var err error
	if c.headless, err = coerceStringSlice(obj.Headless); err != nil {
		return fmt.Errorf("persona: cmd.headless: %w", err)
	}
	if c.interactive, err = coerceStringSlice(obj.Interactive); err != nil {
		return fmt.Errorf("persona: cmd.interactive: %w", err)
	}
	return nil
}

// IsZero reports whether no command was specified at all.
func (c CommandSpec) IsZero() bool {
	return c.single == "" && len(c.sequence) == 0 && len(c.headless) == 0 && len(c.interactive) == 0
}

func coerceStringSlice(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or sequence, got %T", v)
	}
}

// Commands is the normalized form of a CommandSpec: two ordered fallback
// sequences, resolved once at load time (spec.md §9 "dynamic dispatch across
// command variants" design note).
type Commands struct {
	Headless    []string
	Interactive []string
}

// normalize converts a raw CommandSpec into a Commands record. A bare
// string/sequence counts as headless-only; a structured object must define
// at least one mode, and interactive-only serves as the headless fallback too.
func normalize(c CommandSpec) (Commands, error) {
	switch {
	case c.structured:
		if len(c.headless) == 0 && len(c.interactive) == 0 {
			return Commands{}, fmt.Errorf("persona: command spec must define headless or interactive")
		}
		headless := c.headless
		if len(headless) == 0 {
			headless = c.interactive
		}
		return Commands{Headless: headless, Interactive: c.interactive}, nil
	case len(c.sequence) > 0:
		return Commands{Headless: c.sequence}, nil
	case c.single != "":
		return Commands{Headless: []string{c.single}}, nil
	default:
		return Commands{}, nil
	}
}

// Persona is a named definition loaded from a PERSONA.md file.
type Persona struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Cmd         CommandSpec       `yaml:"cmd,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	Skills      []string          `yaml:"skills,omitempty"`
	Extends     string            `yaml:"extends,omitempty"`

	// Prompt is the Markdown body following the YAML header.
	Prompt string `yaml:"-"`

	// Path is the filesystem path of PERSONA.md this was loaded from.
	Path string `yaml:"-"`

	// MCP is the parsed sibling mcp.json, if present.
	MCP MCPConfig `yaml:"-"`

	// Hooks is the parsed sibling hooks.json, if present.
	Hooks HooksConfig `yaml:"-"`
}

// MCPServer is one entry of mcp.json's mcpServers map.
type MCPServer struct {
	Command string            `json:"command" yaml:"command"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// MCPConfig is the parsed shape of mcp.json.
type MCPConfig struct {
	MCPServers map[string]MCPServer `json:"mcpServers" yaml:"mcpServers"`
}

// HookSpec is one entry of a hooks.json event's hook list.
type HookSpec struct {
	Type    string `json:"type" yaml:"type"`
	Command string `json:"command" yaml:"command"`
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// HookGroup wraps a hook list the way hooks.json nests it: {"hooks": [...]}.
type HookGroup struct {
	Hooks []HookSpec `json:"hooks" yaml:"hooks"`
}

// HooksConfig is the parsed shape of hooks.json: event name -> ordered groups.
type HooksConfig map[string][]HookGroup

// ResolvedPersona is the result of walking an inheritance chain and merging
// every ancestor into a single runnable record.
type ResolvedPersona struct {
	Name             string
	Env              map[string]string
	Skills           []string
	Prompt           string
	MCP              MCPConfig
	Hooks            HooksConfig
	Commands         Commands
	InheritanceChain []string
}
