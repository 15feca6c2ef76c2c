package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/agentsd/internal/persona"
	"github.com/nextlevelbuilder/agentsd/internal/sessionstore"
	"github.com/nextlevelbuilder/agentsd/internal/workflow"
)

func newTestExecutor(t *testing.T, cmd string) *Executor {
	t.Helper()
	root := t.TempDir()
	personasRoot := filepath.Join(root, "personas")

	content := "---\nname: echoer\nextends: none\ncmd: \"" + cmd + "\"\n---\nYou are the echo persona."
	require.NoError(t, os.MkdirAll(filepath.Join(personasRoot, "echoer"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(personasRoot, "echoer", "PERSONA.md"), []byte(content), 0o644))

	resolver := &persona.Resolver{PersonasRoot: personasRoot, AgentsDir: root}

	sessions, err := sessionstore.New(filepath.Join(root, "sessions"))
	require.NoError(t, err)

	return New(resolver, sessions, func() Inventory { return Inventory{} }, nil)
}

func TestInvokePersonaHeadlessSuccess(t *testing.T) {
	e := newTestExecutor(t, "cat")

	res, err := e.InvokePersona(context.Background(), "echoer", "hello there", RunOptions{})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, res.Stdout, "hello there")
	require.Contains(t, res.Stdout, "echo persona")

	sess, err := e.Sessions.Load(listFirstSession(t, e))
	require.NoError(t, err)
	require.True(t, sess.Header.Result.Success)
}

func TestRunWorkflowExpandsTaskBody(t *testing.T) {
	e := newTestExecutor(t, "cat")

	w := &workflow.Workflow{
		Name:    "greet",
		Persona: "echoer",
		Body:    "Say hello to ${NAME}.",
	}

	res, err := e.Run(context.Background(), w, RunOptions{Inputs: map[string]string{"NAME": "Ada"}})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Contains(t, res.Stdout, "Say hello to Ada.")
}

func TestInvokePersonaUnknownFails(t *testing.T) {
	e := newTestExecutor(t, "cat")
	_, err := e.InvokePersona(context.Background(), "nope", "hi", RunOptions{})
	require.Error(t, err)
}

func listFirstSession(t *testing.T, e *Executor) string {
	t.Helper()
	sessions, err := e.Sessions.ListRecent(1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	return sessions[0].ID
}
