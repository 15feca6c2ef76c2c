// Command agentsd runs the local agent-orchestration daemon: it watches an
// agents-directory for personas, workflows, and channel messages, and
// dispatches them to agent subprocesses, exposing an HTTP/SSE control
// surface alongside. Grounded on the teacher's cmd/gateway.go bootstrap
// (structured logging, cobra root command, signal-driven graceful
// shutdown), reshaped around supervisor.Supervisor instead of the
// teacher's channel-manager/scheduler wiring.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentsd/internal/config"
	"github.com/nextlevelbuilder/agentsd/internal/supervisor"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0".
var Version = "dev"

var (
	agentsDirFlag string
	configFlag    string
	verboseFlag   bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentsd",
		Short: "agentsd — local agent-orchestration daemon",
		Long:  "agentsd watches an agents-directory for personas, workflows, and channel messages, and dispatches them to agent subprocesses.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart()
		},
	}

	root.PersistentFlags().StringVar(&agentsDirFlag, "agents-dir", "", "agents directory (default: walk up from cwd for .agents, else ~/.agents)")
	root.PersistentFlags().StringVar(&configFlag, "config", "", "config file path (default: <agents-dir>/agentsd.json5)")
	root.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")

	root.AddCommand(startCmd(), versionCmd(), statusCmd(), reloadCmd(), triggerCmd())
	return root
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("agentsd %s\n", Version)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Query the running daemon's /status endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clientRequest(http.MethodGet, "/status", nil)
		},
	}
}

func reloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask the running daemon to reload workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clientRequest(http.MethodPost, "/reload", nil)
		},
	}
}

func triggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <workflow>",
		Short: "Manually trigger a workflow on the running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return clientRequest(http.MethodPost, "/trigger/"+args[0], nil)
		},
	}
}

// runStart resolves the agents directory and config, constructs the
// supervisor, and blocks until a SIGINT/SIGTERM triggers graceful shutdown,
// per spec.md §4.7 and §5's cancellation model.
func runStart() error {
	logLevel := slog.LevelInfo
	if verboseFlag {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	agentsDir := agentsDirFlag
	if agentsDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("agentsd: resolve cwd: %w", err)
		}
		agentsDir, err = config.FindAgentsDir(cwd)
		if err != nil {
			return fmt.Errorf("agentsd: find agents dir: %w", err)
		}
	}

	cfgPath := configFlag
	if cfgPath == "" {
		cfgPath = agentsDir + "/agentsd.json5"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("agentsd: load config: %w", err)
	}
	if agentsDirFlag == "" && cfg.Daemon.AgentsDir != "" {
		agentsDir = config.ExpandHome(cfg.Daemon.AgentsDir)
	}
	cfg.Daemon.AgentsDir = agentsDir

	sup, err := supervisor.New(agentsDir, cfg, logger)
	if err != nil {
		return fmt.Errorf("agentsd: construct supervisor: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("agentsd: graceful shutdown initiated", "signal", sig)
		cancel()
	}()

	logger.Info("agentsd: starting", "agentsDir", agentsDir, "addr", fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port))
	return sup.Start(ctx)
}

// clientRequest is the thin HTTP client backing the CLI subcommands that
// drive an already-running daemon; the subprocess's exit code mirrors
// spec.md §6's documented CLI wrapper exit codes.
func clientRequest(method, path string, body []byte) error {
	cfgPath := configFlag
	agentsDir := agentsDirFlag
	if agentsDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		agentsDir, err = config.FindAgentsDir(cwd)
		if err != nil {
			return err
		}
	}
	if cfgPath == "" {
		cfgPath = agentsDir + "/agentsd.json5"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s:%d%s", cfg.Gateway.Host, cfg.Gateway.Port, path)
	req, err := http.NewRequest(method, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("agentsd: request %s %s: %w (is the daemon running?)", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("agentsd: decode response: %w", err)
	}
	encoded, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(encoded))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("agentsd: %s %s returned %d", method, path, resp.StatusCode)
	}
	return nil
}
