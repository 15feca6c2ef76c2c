package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/agentsd/internal/persona"
)

// DefaultHeadlessTimeout is spec.md §4.5's default when a workflow/persona
// does not specify one.
const DefaultHeadlessTimeout = 10 * time.Minute

// wrapperCommand is the known CLI wrapper that accepts --mcp-config and
// --settings; MCP/hooks side files are only injected when the command's
// first token matches it.
const wrapperCommand = "claude"

// RunResult is one subprocess attempt's outcome.
type RunResult struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Error    string
}

// writeSideFiles writes a persona's mcp/hooks config to uniquely-named temp
// files, returning the extra CLI flags to append when the command matches
// the known wrapper.
func writeSideFiles(dir string, p *persona.ResolvedPersona) ([]string, error) {
	var flags []string

	if len(p.MCP.MCPServers) > 0 {
		path, err := writeJSONTemp(dir, "mcp-*.json", p.MCP)
		if err != nil {
			return nil, err
		}
		flags = append(flags, "--mcp-config", path)
	}

	if len(p.Hooks) > 0 {
		path, err := writeJSONTemp(dir, "hooks-*.json", p.Hooks)
		if err != nil {
			return nil, err
		}
		flags = append(flags, "--settings", path)
	}

	return flags, nil
}

func writeJSONTemp(dir, pattern string, v interface{}) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("executor: create temp %s: %w", pattern, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("executor: write temp %s: %w", pattern, err)
	}
	return f.Name(), nil
}

// tokenize splits a command string on whitespace, substituting {PROMPT}
// with the composed prompt as a single argument.
func tokenize(cmdStr, prompt string) []string {
	fields := strings.Fields(cmdStr)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "{PROMPT}" {
			out = append(out, prompt)
		} else {
			out = append(out, f)
		}
	}
	return out
}

// runOne spawns a single command-chain entry. In interactive mode the
// prompt is passed as the final argument and stdio is inherited; timeout is
// ignored. In headless mode the prompt is piped on stdin and stdout/stderr
// are captured, bounded by timeout.
func runOne(ctx context.Context, workDir string, env []string, cmdStr, prompt string, interactive bool, timeout time.Duration, sideFileFlags []string) *RunResult {
	args := tokenize(cmdStr, prompt)
	if len(args) == 0 {
		return &RunResult{Error: "empty command"}
	}

	hasPromptArg := strings.Contains(cmdStr, "{PROMPT}")

	if interactive {
		args = appendSideFileFlags(args, cmdStr, sideFileFlags)
		if !hasPromptArg {
			args = append(args, prompt)
		}

		cmd := exec.CommandContext(ctx, args[0], args[1:]...)
		cmd.Dir = workDir
		cmd.Env = env
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		err := cmd.Run()
		return resultFromErr(err, "", "")
	}

	args = appendSideFileFlags(args, cmdStr, sideFileFlags)

	runCtx, cancel := context.WithTimeout(ctx, effectiveTimeout(timeout))
	defer cancel()

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Dir = workDir
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if !hasPromptArg {
		cmd.Stdin = strings.NewReader(prompt)
	}

	err := cmd.Run()
	if err != nil && runCtx.Err() == context.DeadlineExceeded {
		return &RunResult{Error: fmt.Sprintf("command timed out after %s", effectiveTimeout(timeout)), Stdout: stdout.String(), Stderr: stderr.String()}
	}
	return resultFromErr(err, stdout.String(), stderr.String())
}

func appendSideFileFlags(args []string, cmdStr string, flags []string) []string {
	if len(flags) == 0 {
		return args
	}
	if len(args) == 0 || filepath.Base(args[0]) != wrapperCommand {
		return args
	}
	return append(args, flags...)
}

func effectiveTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultHeadlessTimeout
	}
	return timeout
}

func resultFromErr(err error, stdout, stderr string) *RunResult {
	r := &RunResult{Stdout: stdout, Stderr: stderr}
	if err == nil {
		r.Success = true
		return r
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		r.ExitCode = exitErr.ExitCode()
		r.Error = err.Error()
		return r
	}
	r.ExitCode = 1
	r.Error = err.Error()
	return r
}

// runFallbackChain tries each command in order, stopping at the first
// success. A non-zero exit or spawn failure moves to the next command.
func runFallbackChain(ctx context.Context, workDir string, env []string, chain []string, prompt string, interactive bool, timeout time.Duration, sideFileFlags []string) *RunResult {
	var last *RunResult
	for _, cmdStr := range chain {
		last = runOne(ctx, workDir, env, cmdStr, prompt, interactive, timeout, sideFileFlags)
		if last.Success {
			return last
		}
	}
	if last == nil {
		return &RunResult{Error: "no commands configured"}
	}
	return last
}
