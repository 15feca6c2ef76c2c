package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error: Default() plus env overrides is a valid config.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// ApplyEnvOverrides re-applies environment variable overrides, exported for
// callers that construct a Config without going through Load.
func (c *Config) ApplyEnvOverrides() {
	c.applyEnvOverrides()
}

func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("AGENTSD_AGENTS_DIR", &c.Daemon.AgentsDir)
	envStr("AGENTSD_PID_FILE", &c.Daemon.PIDFile)
	envStr("AGENTSD_HOST", &c.Gateway.Host)
	if v := os.Getenv("AGENTSD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}
	envStr("AGENTSD_TIMEZONE", &c.Scheduler.Timezone)
	envStr("AGENTSD_WRAPPER_COMMAND", &c.Executor.WrapperCommand)
	envStr("AGENTSD_DEFAULT_TIMEOUT", &c.Executor.DefaultTimeout)

	if v := os.Getenv("AGENTSD_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Safeguards.RateLimit = n
		}
	}
	if v := os.Getenv("AGENTSD_BREAKER_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Safeguards.BreakerThreshold = n
		}
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if len(path) > 1 && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return home
}

// FindAgentsDir implements spec.md §4.7 step 1: walk parents from cwd
// looking for a .agents directory, falling back to ~/.agents.
func FindAgentsDir(cwd string) (string, error) {
	dir := cwd
	for {
		candidate := filepath.Join(dir, ".agents")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".agents"), nil
}
