package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nextlevelbuilder/agentsd/internal/persona"
	"github.com/nextlevelbuilder/agentsd/internal/sessionstore"
	"github.com/nextlevelbuilder/agentsd/internal/workflow"
)

// Result is the executor's public outcome per spec.md §4.5.
type Result struct {
	Success   bool
	ExitCode  int
	Stdout    string
	Stderr    string
	Duration  time.Duration
	RunID     string
	StartedAt time.Time
	EndedAt   time.Time
	Outputs   map[string]string
	Error     string
}

// RunOptions narrows Run/InvokePersona behavior for one invocation.
type RunOptions struct {
	Inputs      map[string]string
	Interactive bool
	Source      string
	Context     map[string]string
	Goal        string
	Timeout     time.Duration
	TriggerType sessionstore.TriggerType
	FromAddress string
	FromChannel string
	FromThread  string
	PrevSession string
}

// Executor composes prompts, spawns agents, and writes sessions.
type Executor struct {
	Resolver     *persona.Resolver
	Sessions     *sessionstore.Store
	Inventory    func() Inventory
	Hostname     string
	Logger       *slog.Logger
}

// New constructs an Executor.
func New(resolver *persona.Resolver, sessions *sessionstore.Store, inventory func() Inventory, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	hostname, _ := os.Hostname()
	return &Executor{Resolver: resolver, Sessions: sessions, Inventory: inventory, Hostname: hostname, Logger: logger}
}

// Run executes a workflow's task body against its persona.
func (e *Executor) Run(ctx context.Context, w *workflow.Workflow, opts RunOptions) (*Result, error) {
	resolved, err := e.Resolver.Resolve(w.Persona)
	if err != nil {
		return nil, fmt.Errorf("executor: resolve persona %q: %w", w.Persona, err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = parseDuration(w.Timeout)
	}

	taskBody := workflow.Expand(w.Body, mergeContext(opts.Context, opts.Inputs))

	triggerType := opts.TriggerType
	if triggerType == "" {
		triggerType = sessionstore.TriggerManual
	}

	return e.invoke(ctx, resolved, invokeParams{
		workflowName: w.Name,
		taskBody:     taskBody,
		env:          workflow.MergeEnv(nil, w.Env),
		workingDir:   w.WorkingDir,
		interactive:  opts.Interactive,
		timeout:      timeout,
		triggerType:  triggerType,
		goal:         opts.Goal,
		fromAddress:  opts.FromAddress,
		fromChannel:  opts.FromChannel,
		fromThread:   opts.FromThread,
		prevSession:  opts.PrevSession,
	})
}

// InvokePersona runs a persona directly against a raw message, e.g. a DM.
func (e *Executor) InvokePersona(ctx context.Context, personaName, message string, opts RunOptions) (*Result, error) {
	resolved, err := e.Resolver.Resolve(personaName)
	if err != nil {
		return nil, fmt.Errorf("executor: resolve persona %q: %w", personaName, err)
	}

	triggerType := opts.TriggerType
	if triggerType == "" {
		triggerType = sessionstore.TriggerDM
	}

	return e.invoke(ctx, resolved, invokeParams{
		personaName: personaName,
		rawMessage:  message,
		interactive: opts.Interactive,
		timeout:     opts.Timeout,
		triggerType: triggerType,
		goal:        opts.Goal,
		fromAddress: opts.FromAddress,
		fromChannel: opts.FromChannel,
		fromThread:  opts.FromThread,
		prevSession: opts.PrevSession,
	})
}

type invokeParams struct {
	personaName  string
	workflowName string
	taskBody     string
	rawMessage   string
	env          map[string]string
	workingDir   string
	interactive  bool
	timeout      time.Duration
	triggerType  sessionstore.TriggerType
	goal         string
	fromAddress  string
	fromChannel  string
	fromThread   string
	prevSession  string
}

func (e *Executor) invoke(ctx context.Context, resolved *persona.ResolvedPersona, p invokeParams) (*Result, error) {
	startedAt := time.Now()
	runID := NewRunID()

	workDir := p.workingDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}

	mode := sessionstore.ModeHeadless
	if p.interactive {
		mode = sessionstore.ModeInteractive
	}

	sess, err := e.Sessions.Create(sessionstore.Header{
		Hostname:      e.Hostname,
		ExecutionMode: mode,
		TriggerType:   p.triggerType,
		WorkingDir:    workDir,
		Goal:          p.goal,
		Persona:       resolved.Name,
		Workflow:      p.workflowName,
	})
	if err != nil {
		return nil, fmt.Errorf("executor: create session: %w", err)
	}

	execCtx := WithOverrides(BaseContext(startedAt, runID), map[string]string{
		"PERSONA_NAME":  resolved.Name,
		"WORKFLOW_NAME": p.workflowName,
		"SESSION_DIR":   sess.Dir,
		"FROM_ADDRESS":  p.fromAddress,
		"FROM_CHANNEL":  p.fromChannel,
		"FROM_THREAD":   p.fromThread,
	})

	discovery := ""
	if e.Inventory != nil {
		discovery = BuildEnvironmentDiscovery(e.Inventory())
	}

	prompt := Compose(PromptInputs{
		Resolved:    resolved,
		Context:     execCtx,
		Discovery:   discovery,
		TaskBody:    p.taskBody,
		RawMessage:  p.rawMessage,
		PrevSession: p.prevSession,
	})

	envLayers := []map[string]string{
		workflow.EnvToContext(os.Environ()),
		resolved.Env,
		p.env,
		DaemonEnvVars(resolved.Name, sess.ID, sess.Dir, p.fromAddress),
	}
	env := workflow.ExpandEnv(workflow.MergeEnv(envLayers...), execCtx)

	sideFlags, err := writeSideFiles(sess.Dir, resolved)
	if err != nil {
		e.Logger.Warn("executor: write side files", "error", err)
	}

	chain := resolved.Commands.Headless
	if p.interactive {
		chain = resolved.Commands.Interactive
		if len(chain) == 0 {
			chain = resolved.Commands.Headless
		}
	}

	runRes := runFallbackChain(ctx, workDir, envToSlice(env), chain, prompt, p.interactive, p.timeout, sideFlags)

	endedAt := time.Now()
	duration := endedAt.Sub(startedAt)

	result := &Result{
		Success:   runRes.Success,
		ExitCode:  runRes.ExitCode,
		Stdout:    runRes.Stdout,
		Stderr:    runRes.Stderr,
		Duration:  duration,
		RunID:     runID,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Error:     runRes.Error,
	}

	if !p.interactive {
		transcript := prompt
		if runRes.Stdout != "" {
			transcript += "\n\n" + runRes.Stdout
		}
		if runRes.Stderr != "" {
			transcript += "\n\nSTDERR:\n" + runRes.Stderr
		}
		if err := sess.AppendTranscript(transcript); err != nil {
			e.Logger.Warn("executor: append transcript", "error", err)
		}

		if err := sess.Finalize(sessionstore.Result{
			Success:  runRes.Success,
			ExitCode: runRes.ExitCode,
			Error:    runRes.Error,
		}, duration); err != nil {
			e.Logger.Warn("executor: finalize session", "error", err)
		}
	}

	return result, nil
}

func mergeContext(base, inputs map[string]string) workflow.Context {
	ctx := workflow.Context{}
	for k, v := range base {
		ctx[k] = v
	}
	for k, v := range inputs {
		ctx[k] = v
	}
	return ctx
}

func envToSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
