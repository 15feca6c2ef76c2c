package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePersona(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolveImplicitInheritance(t *testing.T) {
	root := t.TempDir()
	personasRoot := filepath.Join(root, "personas")

	writePersona(t, filepath.Join(personasRoot, "a", "PERSONA.md"), "---\nname: a\nskills: [x, y]\n---\nA")
	writePersona(t, filepath.Join(personasRoot, "a", "b", "PERSONA.md"), "---\nname: b\nskills: [\"!x\", z]\n---\nB")

	r := &Resolver{PersonasRoot: personasRoot, AgentsDir: root}
	resolved, err := r.Resolve("a/b")
	require.NoError(t, err)

	require.Equal(t, "b", resolved.Name)
	require.Equal(t, []string{"y", "z"}, resolved.Skills)
	require.Contains(t, resolved.Prompt, "A")
	require.Contains(t, resolved.Prompt, "---")
	require.Contains(t, resolved.Prompt, "B")
	require.Equal(t, baseName, mustLoadName(t, resolved.InheritanceChain[0]))
}

func TestResolveExtendsNoneSkipsBase(t *testing.T) {
	root := t.TempDir()
	personasRoot := filepath.Join(root, "personas")

	writePersona(t, filepath.Join(personasRoot, "solo", "PERSONA.md"), "---\nname: solo\nextends: none\n---\nSolo prompt")

	r := &Resolver{PersonasRoot: personasRoot, AgentsDir: root}
	resolved, err := r.Resolve("solo")
	require.NoError(t, err)

	require.NotContains(t, resolved.Prompt, "autonomous agent")
	require.Equal(t, "Solo prompt", resolved.Prompt)
}

func TestResolveCyclicExtendsFails(t *testing.T) {
	root := t.TempDir()
	personasRoot := filepath.Join(root, "personas")

	writePersona(t, filepath.Join(personasRoot, "a", "PERSONA.md"), "---\nname: a\nextends: b\n---\nA")
	writePersona(t, filepath.Join(personasRoot, "b", "PERSONA.md"), "---\nname: b\nextends: a\n---\nB")

	r := &Resolver{PersonasRoot: personasRoot, AgentsDir: root}
	_, err := r.Resolve("a")
	require.ErrorIs(t, err, ErrCyclicInheritance)
}

func TestCommandSpecInteractiveOnlyNormalizes(t *testing.T) {
	root := t.TempDir()
	personasRoot := filepath.Join(root, "personas")

	writePersona(t, filepath.Join(personasRoot, "p", "PERSONA.md"), "---\nname: p\ncmd:\n  interactive: X\n---\nbody")

	r := &Resolver{PersonasRoot: personasRoot, AgentsDir: root}
	resolved, err := r.Resolve("p")
	require.NoError(t, err)

	require.Equal(t, []string{"X"}, resolved.Commands.Headless)
	require.Equal(t, []string{"X"}, resolved.Commands.Interactive)
}

func mustLoadName(t *testing.T, path string) string {
	t.Helper()
	if path == "<built-in:_base>" {
		return baseName
	}
	return ""
}
