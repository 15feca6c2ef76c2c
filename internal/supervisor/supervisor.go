// Package supervisor wires every daemon component together and owns the
// start/stop lifecycle, grounded on the teacher's cmd bootstrap wiring
// (construct components in dependency order, one struct owns shutdown) but
// reshaped around spec.md §4.7's watcher-driven event loop instead of the
// teacher's channel-adapter registration.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/nextlevelbuilder/agentsd/internal/bus"
	"github.com/nextlevelbuilder/agentsd/internal/channelstore"
	"github.com/nextlevelbuilder/agentsd/internal/config"
	"github.com/nextlevelbuilder/agentsd/internal/executor"
	"github.com/nextlevelbuilder/agentsd/internal/httpapi"
	"github.com/nextlevelbuilder/agentsd/internal/persona"
	"github.com/nextlevelbuilder/agentsd/internal/project"
	"github.com/nextlevelbuilder/agentsd/internal/safeguards"
	"github.com/nextlevelbuilder/agentsd/internal/scheduler"
	"github.com/nextlevelbuilder/agentsd/internal/sessionstore"
	"github.com/nextlevelbuilder/agentsd/internal/watcher"
	"github.com/nextlevelbuilder/agentsd/internal/workflow"
	"github.com/nextlevelbuilder/agentsd/pkg/protocol"
)

// defaultPIDFile matches config.Default()'s Daemon.PIDFile, used as the
// liveness-check filename for registered projects other than this one,
// whose own config this process never loads.
const defaultPIDFile = "daemon.pid"

// Supervisor owns every component's lifecycle per spec.md §4.7.
type Supervisor struct {
	AgentsDir string
	Config    *config.Config
	Logger    *slog.Logger

	Resolver   *persona.Resolver
	Channels   *channelstore.Store
	Sessions   *sessionstore.Store
	Safeguards *safeguards.Safeguards
	Scheduler  *scheduler.Scheduler
	Watcher    *watcher.Watcher
	Executor   *executor.Executor
	HTTP       *httpapi.Server
	Projects   *project.Registry
	Bus        bus.EventPublisher

	personasRoot  string
	workflowsRoot string

	mu             sync.RWMutex
	workflows      map[string]*workflow.Workflow
	channelTrigger map[string]*workflow.Workflow

	pidPath string
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New constructs every component and loads the initial workflow set, per
// spec.md §4.7 steps 2-3. Step 1 (locating AgentsDir) is the caller's job —
// see config.FindAgentsDir.
func New(agentsDir string, cfg *config.Config, logger *slog.Logger) (*Supervisor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	personasRoot := filepath.Join(agentsDir, "personas")
	workflowsRoot := filepath.Join(agentsDir, "workflows")
	channelsRoot := filepath.Join(agentsDir, "channels")
	sessionsRoot := filepath.Join(agentsDir, "sessions")

	channels, err := channelstore.New(channelsRoot)
	if err != nil {
		return nil, err
	}
	sessions, err := sessionstore.New(sessionsRoot)
	if err != nil {
		return nil, err
	}

	regPath, err := project.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("supervisor: resolve project registry path: %w", err)
	}
	registry, err := project.Load(regPath)
	if err != nil {
		return nil, fmt.Errorf("supervisor: load project registry: %w", err)
	}

	resolver := &persona.Resolver{PersonasRoot: personasRoot, AgentsDir: agentsDir}

	sg := &safeguards.Safeguards{
		RateLimiter:    safeguards.NewRateLimiter(cfg.Safeguards.RateLimit, cfg.RateWindowDuration()),
		CircuitBreaker: safeguards.NewCircuitBreaker(cfg.Safeguards.BreakerThreshold, cfg.BreakerWindowDuration(), cfg.BreakerCooldownDuration()),
	}

	sched := scheduler.New(logger)
	w := watcher.New(personasRoot, workflowsRoot, channelsRoot, logger)
	eventBus := bus.New()

	s := &Supervisor{
		AgentsDir:      agentsDir,
		Config:         cfg,
		Logger:         logger,
		Resolver:       resolver,
		Channels:       channels,
		Sessions:       sessions,
		Safeguards:     sg,
		Scheduler:      sched,
		Watcher:        w,
		Projects:       registry,
		Bus:            eventBus,
		personasRoot:   personasRoot,
		workflowsRoot:  workflowsRoot,
		workflows:      map[string]*workflow.Workflow{},
		channelTrigger: map[string]*workflow.Workflow{},
		pidPath:        filepath.Join(agentsDir, cfg.Daemon.PIDFile),
		stopCh:         make(chan struct{}),
	}
	s.Executor = executor.New(resolver, sessions, s.buildInventory, logger)

	httpSrv := httpapi.New(logger)
	httpSrv.Host = cfg.Gateway.Host
	httpSrv.Port = cfg.Gateway.Port
	httpSrv.Scheduler = sched
	httpSrv.Channels = channels
	httpSrv.Sessions = sessions
	httpSrv.Resolver = resolver
	httpSrv.PersonasRoot = personasRoot
	httpSrv.Workflows = s.ListWorkflows
	httpSrv.TriggerFunc = s.triggerWorkflow
	httpSrv.Reload = s.Reload
	httpSrv.Bus = eventBus
	s.HTTP = httpSrv

	if err := s.loadWorkflows(); err != nil {
		return nil, err
	}

	return s, nil
}

// ListWorkflows returns every currently-registered workflow.
func (s *Supervisor) ListWorkflows() []*workflow.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*workflow.Workflow, 0, len(s.workflows))
	for _, w := range s.workflows {
		out = append(out, w)
	}
	return out
}

// loadWorkflows enumerates every WORKFLOW.md under workflowsRoot, registers
// each with the scheduler, and rebuilds the channel-trigger map.
func (s *Supervisor) loadWorkflows() error {
	workflows, err := workflow.LoadAll(s.workflowsRoot)
	if err != nil {
		return fmt.Errorf("supervisor: load workflows: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows = map[string]*workflow.Workflow{}
	s.channelTrigger = map[string]*workflow.Workflow{}

	for _, w := range workflows {
		s.workflows[w.Name] = w
		if err := s.Scheduler.AddWorkflow(w); err != nil {
			return fmt.Errorf("supervisor: register workflow %s: %w", w.Name, err)
		}
		if w.HasChannelTrigger() {
			s.channelTrigger[w.On.Channel.Channel] = w
		}
	}
	return nil
}

// Reload re-enumerates workflows, implementing POST /reload. Personas need
// no reload: the resolver reads them from disk on every invocation.
func (s *Supervisor) Reload() error {
	return s.loadWorkflows()
}

func (s *Supervisor) triggerWorkflow(name string, inputs map[string]string) (string, bool) {
	s.mu.RLock()
	w, ok := s.workflows[name]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}

	if allowed, reason := s.Safeguards.AllowInvocation(w.Persona); !allowed {
		s.Logger.Warn("supervisor: refusing manual trigger", "workflow", name, "reason", reason)
		return "", true
	}

	res, err := s.runWorkflow(context.Background(), w, inputs, sessionstore.TriggerManual)
	s.recordOutcome(err == nil && res != nil && res.Success)
	if err != nil {
		s.Logger.Warn("supervisor: manual trigger failed", "workflow", name, "error", err)
		return "", true
	}
	return res.RunID, true
}

// Start brings up every component per spec.md §4.7 steps 4-7 and blocks,
// dispatching watcher and scheduler events, until ctx is cancelled.
func (s *Supervisor) Start(ctx context.Context) error {
	s.Scheduler.Start()
	s.Watcher.Start()

	if err := s.writePIDFile(); err != nil {
		return err
	}

	httpDone := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		httpDone <- s.HTTP.Start(ctx)
	}()

	s.dispatchEvents(ctx)

	s.Stop()
	if err := <-httpDone; err != nil {
		return err
	}
	return nil
}

// dispatchEvents is the supervisor's coroutine-shaped core: one select loop
// fanning watcher and scheduler events out to their handlers, per spec.md
// §5's "prefer a channel/queue... over callback fan-in" guidance.
func (s *Supervisor) dispatchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case e := <-s.Watcher.Events:
			s.Bus.Broadcast(e)
			s.handleWatcherEvent(ctx, e)
		case e := <-s.Scheduler.Events:
			s.handleSchedulerEvent(ctx, e)
		}
	}
}

func (s *Supervisor) handleWatcherEvent(ctx context.Context, e protocol.Event) {
	switch e.Type {
	case protocol.EventWorkflowAdded, protocol.EventWorkflowChanged, protocol.EventWorkflowRemoved:
		if err := s.loadWorkflows(); err != nil {
			s.Logger.Warn("supervisor: reload workflows after watcher event", "error", err)
		}
	case protocol.EventDMReceived:
		s.handleDM(ctx, e)
	case protocol.EventChannelMessage:
		s.handleChannelMessage(ctx, e)
	}
}

func (s *Supervisor) handleSchedulerEvent(ctx context.Context, e protocol.Event) {
	if e.Type != protocol.EventJobTrigger {
		return
	}
	s.mu.RLock()
	w, ok := s.workflows[e.Path]
	s.mu.RUnlock()
	if !ok {
		return
	}
	if allowed, reason := s.Safeguards.AllowInvocation(w.Persona); !allowed {
		s.Logger.Warn("supervisor: refusing scheduled run", "workflow", w.Name, "reason", reason)
		return
	}
	res, err := s.runWorkflow(ctx, w, nil, sessionstore.TriggerCron)
	s.recordOutcome(err == nil && res != nil && res.Success)
	if err != nil {
		s.Logger.Warn("supervisor: scheduled run failed", "workflow", w.Name, "error", err)
	}
}

// handleDM implements spec.md §4.7 step 5's dm:received wiring: read with
// retry, self-reply check, rate-limit check, strip frontmatter, invoke.
func (s *Supervisor) handleDM(ctx context.Context, e protocol.Event) {
	personaName := strings.TrimPrefix(e.Channel, "@")

	msg, err := s.Channels.GetMessage(e.Channel, e.MessageID)
	if err != nil {
		s.Logger.Warn("supervisor: read dm", "channel", e.Channel, "message", e.MessageID, "error", err)
		return
	}

	if safeguards.IsSelfReply(msg.Meta.From, personaName) {
		s.Logger.Debug("supervisor: suppressing self-reply", "persona", personaName, "from", msg.Meta.From)
		return
	}

	if allowed, reason := s.Safeguards.AllowInvocation(personaName); !allowed {
		s.Logger.Warn("supervisor: refusing dm invocation", "persona", personaName, "reason", reason)
		return
	}

	res, err := s.Executor.InvokePersona(ctx, personaName, msg.Content, executor.RunOptions{
		TriggerType: sessionstore.TriggerDM,
		FromAddress: msg.Meta.From,
		FromChannel: e.Channel,
		FromThread:  msg.ThreadID,
	})
	s.recordOutcome(err == nil && res != nil && res.Success)
	if err != nil {
		s.Logger.Warn("supervisor: invoke persona for dm failed", "persona", personaName, "error", err)
	}
}

// handleChannelMessage implements spec.md §4.7 step 5's channel:message
// wiring: look up the channel-trigger map, strip header, run with the
// message injected as special inputs.
func (s *Supervisor) handleChannelMessage(ctx context.Context, e protocol.Event) {
	s.mu.RLock()
	w, ok := s.channelTrigger[e.Channel]
	s.mu.RUnlock()
	if !ok {
		return
	}

	msg, err := s.Channels.GetMessage(e.Channel, e.MessageID)
	if err != nil {
		s.Logger.Warn("supervisor: read channel message", "channel", e.Channel, "message", e.MessageID, "error", err)
		return
	}

	if allowed, reason := s.Safeguards.AllowInvocation(w.Persona); !allowed {
		s.Logger.Warn("supervisor: refusing channel-triggered run", "workflow", w.Name, "reason", reason)
		return
	}

	inputs := map[string]string{
		"CHANNEL_MESSAGE":    msg.Content,
		"CHANNEL_MESSAGE_ID": e.MessageID,
		"CHANNEL_NAME":       e.Channel,
	}

	res, err := s.runWorkflow(ctx, w, inputs, sessionstore.TriggerChannel)
	s.recordOutcome(err == nil && res != nil && res.Success)
	if err != nil {
		s.Logger.Warn("supervisor: channel-triggered run failed", "workflow", w.Name, "error", err)
	}
}

func (s *Supervisor) runWorkflow(ctx context.Context, w *workflow.Workflow, inputs map[string]string, triggerType sessionstore.TriggerType) (*executor.Result, error) {
	return s.Executor.Run(ctx, w, executor.RunOptions{
		Inputs:      inputs,
		TriggerType: triggerType,
	})
}

// buildInventory reports live daemon state for the environment-discovery
// block composed into every prompt, per spec.md §4.5 step 4.
func (s *Supervisor) buildInventory() executor.Inventory {
	inv := executor.Inventory{
		CurrentProjectName: s.currentProjectName(),
		Projects:           map[string]bool{},
	}

	for name, dir := range s.Projects.Projects {
		inv.Projects[name] = isDaemonAlive(dir)
	}

	if names, err := persona.ListNames(s.personasRoot); err == nil {
		inv.Personas = names
	}
	if descs, err := persona.Descriptions(s.personasRoot); err == nil {
		inv.PersonaDescs = descs
	}

	inv.WorkflowDescs = map[string]string{}
	for _, w := range s.ListWorkflows() {
		inv.Workflows = append(inv.Workflows, w.Name)
		if w.Description != "" {
			inv.WorkflowDescs[w.Name] = w.Description
		}
	}

	if channels, err := s.Channels.ListChannels(); err == nil {
		for _, c := range channels {
			inv.Channels = append(inv.Channels, string(c.Sigil)+c.Name)
		}
	}

	return inv
}

// currentProjectName reverse-looks-up AgentsDir in the project registry.
func (s *Supervisor) currentProjectName() string {
	for name, dir := range s.Projects.Projects {
		if dir == s.AgentsDir {
			return name
		}
	}
	return ""
}

// isDaemonAlive reports whether a daemon.pid file under agentsDir names a
// live process, signalling it with syscall.Kill(pid, 0) per the pack's
// process-liveness idiom (no-op send, error-checked).
func isDaemonAlive(agentsDir string) bool {
	data, err := os.ReadFile(filepath.Join(agentsDir, defaultPIDFile))
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

func (s *Supervisor) recordOutcome(success bool) {
	if success {
		s.Safeguards.CircuitBreaker.RecordSuccess()
	} else {
		s.Safeguards.CircuitBreaker.RecordFailure()
	}
}

// Stop implements spec.md §4.7's stop sequence: halt scheduler, close
// watcher, close HTTP listener, remove PID file. Safe to call more than
// once.
func (s *Supervisor) Stop() {
	select {
	case <-s.stopCh:
		return
	default:
		close(s.stopCh)
	}

	s.Scheduler.Stop()
	s.Watcher.Stop()
	if err := s.HTTP.Close(); err != nil {
		s.Logger.Warn("supervisor: close http listener", "error", err)
	}
	if err := os.Remove(s.pidPath); err != nil && !os.IsNotExist(err) {
		s.Logger.Warn("supervisor: remove pid file", "error", err)
	}
	s.wg.Wait()
}

func (s *Supervisor) writePIDFile() error {
	if err := os.MkdirAll(filepath.Dir(s.pidPath), 0o755); err != nil {
		return fmt.Errorf("supervisor: mkdir for pid file: %w", err)
	}
	return os.WriteFile(s.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644)
}
