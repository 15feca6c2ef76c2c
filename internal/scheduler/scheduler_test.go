package scheduler

import (
	"testing"

	"github.com/nextlevelbuilder/agentsd/internal/workflow"
	"github.com/stretchr/testify/require"
)

func TestAddWorkflowRegistersJobsAndManual(t *testing.T) {
	s := New(nil)
	w := &workflow.Workflow{
		Name: "nightly",
		On: workflow.Triggers{
			Schedule: []workflow.Schedule{{Cron: "0 9 * * 1-5"}},
		},
	}
	require.NoError(t, s.AddWorkflow(w))

	jobs := s.GetJobs()
	require.Len(t, jobs, 2)

	_, ok := s.GetJob("nightly:0")
	require.True(t, ok)
	_, ok = s.GetJob("nightly:manual")
	require.True(t, ok)
}

func TestAddWorkflowRejectsInvalidCron(t *testing.T) {
	s := New(nil)
	w := &workflow.Workflow{
		Name: "bad",
		On:   workflow.Triggers{Schedule: []workflow.Schedule{{Cron: "not a cron"}}},
	}
	require.Error(t, s.AddWorkflow(w))
}

func TestTriggerWorkflowFiresManualJob(t *testing.T) {
	s := New(nil)
	w := &workflow.Workflow{Name: "adhoc"}
	require.NoError(t, s.AddWorkflow(w))

	require.True(t, s.TriggerWorkflow("adhoc"))

	select {
	case ev := <-s.Events:
		require.Equal(t, "adhoc", ev.Path)
	default:
		t.Fatal("expected job:trigger event")
	}
}

func TestRemoveWorkflowDropsAllItsJobs(t *testing.T) {
	s := New(nil)
	w := &workflow.Workflow{
		Name: "w",
		On:   workflow.Triggers{Schedule: []workflow.Schedule{{Cron: "* * * * *"}}},
	}
	require.NoError(t, s.AddWorkflow(w))
	s.RemoveWorkflow("w")

	require.Empty(t, s.GetJobs())
}
