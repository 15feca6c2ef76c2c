// Package scheduler drives workflow triggers on cron schedules, using
// github.com/adhocore/gronx for expression parsing and next/prev-fire
// computation — a teacher dependency retained in go.mod but never wired in
// the retrieved teacher slice; this is its intended home.
package scheduler

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/nextlevelbuilder/agentsd/internal/workflow"
	"github.com/nextlevelbuilder/agentsd/pkg/protocol"
)

// JobStatus is the outcome of a job's most recent run.
type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusSuccess JobStatus = "success"
	StatusFailure JobStatus = "failure"
)

// Job is one registered cron or manual trigger for a workflow.
type Job struct {
	ID           string
	WorkflowName string
	Cron         string // empty for manual-only jobs
	LastRun      time.Time
	NextRun      time.Time
	LastStatus   JobStatus
}

// Scheduler owns the cron job table for every registered workflow.
type Scheduler struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	gron     gronx.Gronx
	Events   chan protocol.Event
	Logger   *slog.Logger
	interval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
	running bool
}

// New returns a Scheduler. interval is how often the cron table is checked
// for due jobs; 10s comfortably resolves minute-granularity POSIX cron.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:     map[string]*Job{},
		gron:     gronx.New(),
		Events:   make(chan protocol.Event, 64),
		Logger:   logger,
		interval: 10 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

func jobID(workflowName string, scheduleIndex int) string {
	return fmt.Sprintf("%s:%d", workflowName, scheduleIndex)
}

// ManualJobID is the id used for triggerWorkflow's ad-hoc jobs.
func ManualJobID(workflowName string) string {
	return workflowName + ":manual"
}

// AddWorkflow registers one job per schedule entry plus a manual job.
func (s *Scheduler) AddWorkflow(w *workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sched := range w.On.Schedule {
		if !s.gron.IsValid(sched.Cron) {
			return fmt.Errorf("scheduler: invalid cron expression %q for workflow %s", sched.Cron, w.Name)
		}
		id := jobID(w.Name, i)
		s.jobs[id] = &Job{ID: id, WorkflowName: w.Name, Cron: sched.Cron, LastStatus: StatusPending}
	}

	manualID := ManualJobID(w.Name)
	if _, exists := s.jobs[manualID]; !exists {
		s.jobs[manualID] = &Job{ID: manualID, WorkflowName: w.Name, LastStatus: StatusPending}
	}
	return nil
}

// RemoveWorkflow deletes every job belonging to workflowName.
func (s *Scheduler) RemoveWorkflow(workflowName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		if j.WorkflowName == workflowName {
			delete(s.jobs, id)
		}
	}
}

// ReloadWorkflow re-registers a workflow's jobs.
func (s *Scheduler) ReloadWorkflow(w *workflow.Workflow) error {
	s.RemoveWorkflow(w.Name)
	return s.AddWorkflow(w)
}

// GetJobs refreshes nextRun for every cron job and returns all jobs sorted
// ascending by nextRun, nulls (manual jobs) last.
func (s *Scheduler) GetJobs() []*Job {
	s.mu.Lock()
	now := time.Now()
	for _, j := range s.jobs {
		if j.Cron == "" {
			continue
		}
		if next, err := s.gron.NextTick(j.Cron, true); err == nil {
			j.NextRun = next
		}
		_ = now
	}
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		cp := *j
		out = append(out, &cp)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].NextRun.IsZero() != out[k].NextRun.IsZero() {
			return !out[i].NextRun.IsZero()
		}
		return out[i].NextRun.Before(out[k].NextRun)
	})
	return out
}

// GetJob returns a single job by id.
func (s *Scheduler) GetJob(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *j
	return &cp, true
}

// TriggerJob fires job:trigger for an existing job id.
func (s *Scheduler) TriggerJob(id string) bool {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if ok {
		j.LastRun = time.Now()
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.emitTrigger(j.WorkflowName, id)
	return true
}

// TriggerWorkflow fires the manual job for workflowName.
func (s *Scheduler) TriggerWorkflow(name string) bool {
	return s.TriggerJob(ManualJobID(name))
}

// UpdateJobStatus records the outcome of a completed run.
func (s *Scheduler) UpdateJobStatus(id string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		if success {
			j.LastStatus = StatusSuccess
		} else {
			j.LastStatus = StatusFailure
		}
	}
}

func (s *Scheduler) emitTrigger(workflowName, jobID string) {
	select {
	case s.Events <- protocol.Event{Type: protocol.EventJobTrigger, Path: workflowName}:
	default:
		s.Logger.Warn("scheduler: event channel full, dropping job:trigger", "job", jobID)
	}
}

// Start activates polling of all registered cron entries.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
}

// Stop halts firing but preserves registration; AddWorkflow/GetJobs remain valid.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.fireDue(now)
		}
	}
}

func (s *Scheduler) fireDue(now time.Time) {
	s.mu.Lock()
	var due []*Job
	for _, j := range s.jobs {
		if j.Cron == "" {
			continue
		}
		if !j.LastRun.IsZero() && j.LastRun.Truncate(time.Minute).Equal(now.Truncate(time.Minute)) {
			continue
		}
		ok, err := s.gron.IsDue(j.Cron, now)
		if err != nil {
			continue
		}
		if ok {
			j.LastRun = now
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		s.emitTrigger(j.WorkflowName, j.ID)
	}
}
