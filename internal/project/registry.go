// Package project implements the cross-project registry that maps a
// project name to its agents-directory path, used to resolve addresses of
// the form @project/persona and #project/name.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Registry is the parsed shape of ~/.config/dot-agents/projects.yaml.
type Registry struct {
	Projects map[string]string `yaml:"projects"`
	path     string
}

// DefaultPath returns the standard per-user registry location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("project: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "dot-agents", "projects.yaml"), nil
}

// Load reads the registry at path, returning an empty registry if it does
// not yet exist.
func Load(path string) (*Registry, error) {
	r := &Registry{Projects: map[string]string{}, path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("project: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("project: parse %s: %w", path, err)
	}
	if r.Projects == nil {
		r.Projects = map[string]string{}
	}
	return r, nil
}

// Resolve returns the agents-directory path registered for name, or false.
func (r *Registry) Resolve(name string) (string, bool) {
	path, ok := r.Projects[name]
	return path, ok
}

// Set registers or updates a project and persists the registry.
func (r *Registry) Set(name, agentsDir string) error {
	r.Projects[name] = agentsDir
	return r.save()
}

func (r *Registry) save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("project: mkdir: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("project: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), "projects-*.tmp")
	if err != nil {
		return fmt.Errorf("project: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("project: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("project: sync temp: %w", err)
	}
	tmp.Close()

	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("project: rename: %w", err)
	}
	return nil
}
