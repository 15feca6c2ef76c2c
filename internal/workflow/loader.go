package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nextlevelbuilder/agentsd/internal/frontmatter"
)

// ErrMissingName is returned when a workflow header omits the required name field.
var ErrMissingName = errors.New("workflow: missing required field: name")

// Load parses a single WORKFLOW.md file.
func Load(path string) (*Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", path, err)
	}

	var w Workflow
	body, err := frontmatter.Parse(raw, &w)
	if err != nil {
		return nil, fmt.Errorf("workflow: %s: %w", path, err)
	}
	if w.Name == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingName, path)
	}
	w.Body = body
	w.Path = path

	return &w, nil
}

// LoadAll walks workflowsRoot/<name>/WORKFLOW.md for every subdirectory.
func LoadAll(workflowsRoot string) ([]*Workflow, error) {
	entries, err := os.ReadDir(workflowsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("workflow: read dir %s: %w", workflowsRoot, err)
	}

	var workflows []*Workflow
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(workflowsRoot, e.Name(), "WORKFLOW.md")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		w, err := Load(path)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}
	return workflows, nil
}
