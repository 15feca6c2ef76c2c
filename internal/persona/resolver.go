package persona

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrCyclicInheritance is returned when an extends chain revisits a path.
var ErrCyclicInheritance = errors.New("persona: cyclic inheritance")

// Resolver walks a directory-structured persona tree and merges inheritance
// chains into ResolvedPersona records, grounded on the teacher's
// internal/agent/resolver.go merge-and-accumulate shape.
type Resolver struct {
	// PersonasRoot is the agents-directory's personas/ subdirectory.
	PersonasRoot string
	// AgentsDir is the agents-directory root, where an optional root
	// PERSONA.md and an optional _project persona may live.
	AgentsDir string
}

// Resolve implements resolve(personaPath, personasRoot) -> ResolvedPersona.
// name is either "root" (the agents-directory root persona) or a path
// relative to PersonasRoot, e.g. "a/b".
func (r *Resolver) Resolve(name string) (*ResolvedPersona, error) {
	chain, err := r.buildChain(name, map[string]bool{})
	if err != nil {
		return nil, err
	}

	root := chain[0]
	if root.Extends != "none" {
		chain = r.prependAutoAncestors(chain)
	}

	return merge(chain)
}

// dirFor returns the directory containing name's PERSONA.md.
func (r *Resolver) dirFor(name string) string {
	if name == "root" {
		return r.AgentsDir
	}
	return filepath.Join(r.PersonasRoot, filepath.FromSlash(name))
}

// buildChain returns the persona chain, root-first, ending with the persona
// named by name. visited is keyed by absolute PERSONA.md path.
func (r *Resolver) buildChain(name string, visited map[string]bool) ([]*Persona, error) {
	dir := r.dirFor(name)
	target, err := load(dir)
	if err != nil {
		return nil, err
	}

	if visited[target.Path] {
		return nil, fmt.Errorf("%w: %s", ErrCyclicInheritance, target.Path)
	}
	visited[target.Path] = true

	switch {
	case target.Extends == "none":
		return []*Persona{target}, nil
	case target.Extends != "":
		parentChain, err := r.buildChain(target.Extends, visited)
		if err != nil {
			return nil, err
		}
		return append(parentChain, target), nil
	default:
		return r.implicitChain(name, target, visited)
	}
}

// implicitChain loads every ancestor directory segment from PersonasRoot
// down to (but not including) target's own directory, each one if it has a
// PERSONA.md, then appends target.
func (r *Resolver) implicitChain(name string, target *Persona, visited map[string]bool) ([]*Persona, error) {
	if name == "root" {
		return []*Persona{target}, nil
	}

	segments := strings.Split(filepath.ToSlash(name), "/")
	chain := make([]*Persona, 0, len(segments)+1)

	for i := 1; i < len(segments); i++ {
		ancestorName := strings.Join(segments[:i], "/")
		dir := r.dirFor(ancestorName)
		if _, err := os.Stat(filepath.Join(dir, "PERSONA.md")); err != nil {
			continue
		}
		p, err := load(dir)
		if err != nil {
			return nil, err
		}
		if visited[p.Path] {
			return nil, fmt.Errorf("%w: %s", ErrCyclicInheritance, p.Path)
		}
		visited[p.Path] = true
		chain = append(chain, p)
	}

	return append(chain, target), nil
}

// prependAutoAncestors prepends the built-in _base and, if present, the
// project-local _project persona, unless the caller already started the
// chain with extends: none.
func (r *Resolver) prependAutoAncestors(chain []*Persona) []*Persona {
	var ancestors []*Persona

	base, err := loadBase()
	if err == nil {
		ancestors = append(ancestors, base)
	}

	projectDir := filepath.Join(r.AgentsDir, projectName)
	if _, err := os.Stat(filepath.Join(projectDir, "PERSONA.md")); err == nil {
		if p, err := load(projectDir); err == nil {
			ancestors = append(ancestors, p)
		}
	}

	return append(ancestors, chain...)
}

// merge folds a root-to-leaf persona chain into a single ResolvedPersona
// per spec's parent-to-child merge rules.
func merge(chain []*Persona) (*ResolvedPersona, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("persona: empty chain")
	}

	out := &ResolvedPersona{
		Env:   map[string]string{},
		Hooks: HooksConfig{},
		MCP:   MCPConfig{MCPServers: map[string]MCPServer{}},
	}

	var lastCmd CommandSpec
	var prompts []string
	var inheritanceChain []string

	for _, p := range chain {
		out.Name = p.Name
		mergeEnv(out.Env, p.Env)
		out.Skills = mergeSkills(out.Skills, p.Skills)
		if p.Prompt != "" {
			prompts = append(prompts, strings.TrimRight(p.Prompt, "\n"))
		}
		for k, v := range p.MCP.MCPServers {
			out.MCP.MCPServers[k] = v
		}
		for event, groups := range p.Hooks {
			out.Hooks[event] = append(out.Hooks[event], groups...)
		}
		if !p.Cmd.IsZero() {
			lastCmd = p.Cmd
		}
		inheritanceChain = append(inheritanceChain, p.Path)
	}

	out.Prompt = strings.Join(prompts, "\n\n---\n\n")
	out.InheritanceChain = inheritanceChain

	cmds, err := normalize(lastCmd)
	if err != nil {
		return nil, err
	}
	out.Commands = cmds

	return out, nil
}

func mergeEnv(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

// mergeSkills implements the ordered-set-union-with-negation rule: start
// from parent's list, append new child entries, and delete the first
// matching parent entry for each `!x` child entry.
func mergeSkills(parent, child []string) []string {
	out := append([]string(nil), parent...)
	for _, item := range child {
		if strings.HasPrefix(item, "!") {
			target := strings.TrimPrefix(item, "!")
			for i, existing := range out {
				if existing == target {
					out = append(out[:i], out[i+1:]...)
					break
				}
			}
			continue
		}
		found := false
		for _, existing := range out {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			out = append(out, item)
		}
	}
	return out
}
