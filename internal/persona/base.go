package persona

import (
	_ "embed"
	"fmt"

	"github.com/nextlevelbuilder/agentsd/internal/frontmatter"
)

//go:embed base.md
var baseMD []byte

const baseName = "_base"
const projectName = "_project"

// loadBase parses the binary-bundled _base persona. It is never loaded from
// disk; it has no Path and can never participate in a cycle.
func loadBase() (*Persona, error) {
	var p Persona
	body, err := frontmatter.Parse(baseMD, &p)
	if err != nil {
		return nil, fmt.Errorf("persona: embedded _base: %w", err)
	}
	p.Prompt = body
	p.Path = "<built-in:_base>"
	return &p, nil
}
