package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nextlevelbuilder/agentsd/internal/frontmatter"
)

// ErrNotFound is returned when a PERSONA.md does not exist at the expected path.
var ErrNotFound = errors.New("persona: not found")

// ErrMissingName is returned when a persona's header omits the required name field.
var ErrMissingName = errors.New("persona: missing required field: name")

// load reads and parses a single PERSONA.md file at dir/PERSONA.md, plus its
// optional mcp.json and hooks.json side files.
func load(dir string) (*Persona, error) {
	path := filepath.Join(dir, "PERSONA.md")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}

	var p Persona
	body, err := frontmatter.Parse(raw, &p)
	if err != nil {
		return nil, fmt.Errorf("persona: %s: %w", path, err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingName, path)
	}
	p.Prompt = body
	p.Path = path

	if mcp, err := loadMCP(dir); err != nil {
		return nil, err
	} else if mcp != nil {
		p.MCP = *mcp
	}

	if hooks, err := loadHooks(dir); err != nil {
		return nil, err
	} else if hooks != nil {
		p.Hooks = hooks
	}

	return &p, nil
}

func loadMCP(dir string) (*MCPConfig, error) {
	path := filepath.Join(dir, "mcp.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}
	var cfg MCPConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("persona: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ListNames walks personasRoot and returns the path of every directory
// (e.g. "a" and "a/b") that has a PERSONA.md, suitable for Resolver.Resolve
// and for the HTTP /personas listing.
func ListNames(personasRoot string) ([]string, error) {
	var names []string
	err := filepath.Walk(personasRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || filepath.Base(path) != "PERSONA.md" {
			return nil
		}
		dir := filepath.Dir(path)
		rel, err := filepath.Rel(personasRoot, dir)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("persona: list %s: %w", personasRoot, err)
	}
	return names, nil
}

// Descriptions returns each persona's declared description, keyed by the
// same name ListNames returns, for display surfaces like the
// environment-discovery block. A persona that fails to load is skipped
// rather than failing the whole listing.
func Descriptions(personasRoot string) (map[string]string, error) {
	names, err := ListNames(personasRoot)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(names))
	for _, name := range names {
		p, err := load(filepath.Join(personasRoot, name))
		if err != nil {
			continue
		}
		if p.Description != "" {
			out[name] = p.Description
		}
	}
	return out, nil
}

func loadHooks(dir string) (HooksConfig, error) {
	path := filepath.Join(dir, "hooks.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}
	var cfg HooksConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("persona: parse %s: %w", path, err)
	}
	return cfg, nil
}
