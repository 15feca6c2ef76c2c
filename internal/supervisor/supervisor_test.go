package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/agentsd/internal/channelstore"
	"github.com/nextlevelbuilder/agentsd/internal/config"
	"github.com/nextlevelbuilder/agentsd/pkg/protocol"
)

func newTestSupervisor(t *testing.T) (*Supervisor, string) {
	t.Helper()
	agentsDir := t.TempDir()

	personaDir := filepath.Join(agentsDir, "personas", "echoer")
	require.NoError(t, os.MkdirAll(personaDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(personaDir, "PERSONA.md"),
		[]byte("---\nname: echoer\nextends: none\ncmd: \"cat\"\n---\nYou are the echo persona."), 0o644))

	workflowDir := filepath.Join(agentsDir, "workflows", "greet")
	require.NoError(t, os.MkdirAll(workflowDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workflowDir, "WORKFLOW.md"),
		[]byte("---\nname: greet\npersona: echoer\n---\nSay hello to ${NAME}."), 0o644))

	cfg := config.Default()
	cfg.Gateway.Port = 0

	s, err := New(agentsDir, cfg, nil)
	require.NoError(t, err)
	return s, agentsDir
}

func TestNewRegistersWorkflows(t *testing.T) {
	s, _ := newTestSupervisor(t)

	workflows := s.ListWorkflows()
	require.Len(t, workflows, 1)
	require.Equal(t, "greet", workflows[0].Name)

	_, ok := s.Scheduler.GetJob("greet:manual")
	require.True(t, ok)
}

func TestTriggerWorkflowRunsAndRecordsResult(t *testing.T) {
	s, _ := newTestSupervisor(t)

	runID, ok := s.triggerWorkflow("greet", map[string]string{"NAME": "Ada"})
	require.True(t, ok)
	require.NotEmpty(t, runID)

	state := s.Safeguards.CircuitBreaker.GetState()
	require.False(t, state.Tripped)
}

func TestTriggerUnknownWorkflowFails(t *testing.T) {
	s, _ := newTestSupervisor(t)
	_, ok := s.triggerWorkflow("nope", nil)
	require.False(t, ok)
}

func TestReloadPicksUpNewWorkflow(t *testing.T) {
	s, agentsDir := newTestSupervisor(t)

	workflowDir := filepath.Join(agentsDir, "workflows", "second")
	require.NoError(t, os.MkdirAll(workflowDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workflowDir, "WORKFLOW.md"),
		[]byte("---\nname: second\npersona: echoer\n---\nBody."), 0o644))

	require.NoError(t, s.Reload())
	require.Len(t, s.ListWorkflows(), 2)
}

func TestHandleDMInvokesPersona(t *testing.T) {
	s, _ := newTestSupervisor(t)

	channel := "@echoer"
	messageID, err := s.Channels.PublishMessage(channel, "hello from a human", channelstore.MessageHeader{From: "@someone"})
	require.NoError(t, err)

	s.handleDM(context.Background(), protocol.Event{
		Type:      protocol.EventDMReceived,
		Channel:   channel,
		MessageID: messageID,
	})

	sessions, err := s.Sessions.ListRecent(1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.True(t, sessions[0].Header.Result.Success)
}

func TestPIDFileWrittenAndRemoved(t *testing.T) {
	s, agentsDir := newTestSupervisor(t)

	require.NoError(t, s.writePIDFile())
	pidPath := filepath.Join(agentsDir, "daemon.pid")
	_, err := os.Stat(pidPath)
	require.NoError(t, err)

	s.Stop()
	_, err = os.Stat(pidPath)
	require.True(t, os.IsNotExist(err))
}
