package executor

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/agentsd/internal/persona"
	"github.com/nextlevelbuilder/agentsd/internal/workflow"
)

const separator = "---"

// discoveryFullCap and discoveryNamesCap are the display-size caps applied
// per spec.md §4.5 step 4 to each listed category.
const (
	discoveryFullCap  = 10
	discoveryNamesCap = 25
)

// Inventory is the live daemon state the environment-discovery block
// summarizes: the current project plus everything registered elsewhere.
type Inventory struct {
	CurrentProjectName string
	Projects           map[string]bool // name -> daemon alive
	Personas           []string
	Workflows          []string
	Channels           []string
	PersonaDescs       map[string]string
	WorkflowDescs      map[string]string
}

// BuildEnvironmentDiscovery renders the Markdown block described in
// spec.md §4.5 step 4, generated fresh per invocation.
func BuildEnvironmentDiscovery(inv Inventory) string {
	var b strings.Builder

	b.WriteString("## Environment\n\n")
	if inv.CurrentProjectName != "" {
		fmt.Fprintf(&b, "Current project: **%s**\n\n", inv.CurrentProjectName)
	}

	if len(inv.Projects) > 0 {
		b.WriteString("### Registered projects\n\n")
		for name, alive := range inv.Projects {
			status := "stopped"
			if alive {
				status = "running"
			}
			fmt.Fprintf(&b, "- %s (%s)\n", name, status)
		}
		b.WriteString("\n")
	}

	writeCategory(&b, "Personas", inv.Personas, inv.PersonaDescs)
	writeCategory(&b, "Workflows", inv.Workflows, inv.WorkflowDescs)
	writeBareCategory(&b, "Channels", inv.Channels)

	return strings.TrimRight(b.String(), "\n")
}

func writeCategory(b *strings.Builder, title string, names []string, descs map[string]string) {
	fmt.Fprintf(b, "### %s\n\n", title)
	switch {
	case len(names) == 0:
		b.WriteString("(none)\n\n")
	case len(names) <= discoveryFullCap:
		for _, n := range names {
			if d := descs[n]; d != "" {
				fmt.Fprintf(b, "- %s — %s\n", n, d)
			} else {
				fmt.Fprintf(b, "- %s\n", n)
			}
		}
		b.WriteString("\n")
	case len(names) <= discoveryNamesCap:
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("\n\n")
	default:
		fmt.Fprintf(b, "%d available; see `/%s` for the full list\n\n", len(names), strings.ToLower(title))
	}
}

func writeBareCategory(b *strings.Builder, title string, names []string) {
	writeCategory(b, title, names, nil)
}

// PromptInputs carries everything needed to compose one invocation's prompt.
type PromptInputs struct {
	Resolved   *persona.ResolvedPersona
	Context    workflow.Context
	Discovery  string
	TaskBody   string   // workflow task body (already template-expanded), or empty for a DM
	RawMessage string   // raw DM content, used when TaskBody is empty
	PrevSession string  // previous session transcript, for legacy resumes
}

// Compose builds the full prompt per spec.md §4.5 steps 2-7.
func Compose(in PromptInputs) string {
	var sections []string

	if in.PrevSession != "" {
		sections = append(sections, "## Previous Session Context\n\n"+in.PrevSession)
	}

	sections = append(sections, workflow.Expand(in.Resolved.Prompt, in.Context))
	sections = append(sections, in.Discovery)

	if in.TaskBody != "" {
		sections = append(sections, workflow.Expand(in.TaskBody, in.Context))
	} else {
		sections = append(sections, "You received a direct message:\n\n"+in.RawMessage)
	}

	return strings.Join(sections, "\n\n"+separator+"\n\n")
}
