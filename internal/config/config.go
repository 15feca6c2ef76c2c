// Package config loads agentsd's daemon configuration: a JSON5 file
// overlaid by environment variables, grounded on the teacher's
// internal/config package (its Config struct served an unrelated
// multi-channel gateway; the JSON5-plus-env-override loading shape and
// ExpandHome helper are what carries over, see DESIGN.md).
package config

import "time"

// DaemonConfig controls where the daemon finds its agents-directory and
// where it records its own pid.
type DaemonConfig struct {
	AgentsDir string `json:"agentsDir,omitempty"`
	PIDFile   string `json:"pidFile,omitempty"`
}

// GatewayConfig is the HTTP/SSE surface's bind address, named Gateway for
// consistency with the teacher's config section naming.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// SchedulerConfig holds cron-evaluation settings. The scheduler does not
// read them: it checks for due jobs every 10s, in the process's local time
// zone.
type SchedulerConfig struct {
	Timezone      string `json:"timezone,omitempty"`
	CheckInterval string `json:"checkInterval,omitempty"`
}

// SafeguardsConfig controls rate limiting and circuit breaking thresholds.
type SafeguardsConfig struct {
	RateLimit        int    `json:"rateLimit"`
	RateWindow       string `json:"rateWindow,omitempty"`
	BreakerThreshold int    `json:"breakerThreshold"`
	BreakerWindow    string `json:"breakerWindow,omitempty"`
	BreakerCooldown  string `json:"breakerCooldown,omitempty"`
}

// ExecutorConfig holds subprocess spawning defaults. The executor does not
// read them: it uses its own 10-minute default timeout, and injects MCP/hooks
// flags only for a command named "claude".
type ExecutorConfig struct {
	DefaultTimeout string `json:"defaultTimeout,omitempty"`
	WrapperCommand string `json:"wrapperCommand"`
}

// Config is the top-level daemon configuration.
type Config struct {
	Daemon     DaemonConfig     `json:"daemon"`
	Gateway    GatewayConfig    `json:"gateway"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Safeguards SafeguardsConfig `json:"safeguards"`
	Executor   ExecutorConfig   `json:"executor"`
}

// Default returns a Config populated with spec.md's documented defaults.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			PIDFile: "daemon.pid",
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 3141,
		},
		Scheduler: SchedulerConfig{
			CheckInterval: "10s",
		},
		Safeguards: SafeguardsConfig{
			RateLimit:        5,
			RateWindow:       "60s",
			BreakerThreshold: 10,
			BreakerWindow:    "60s",
			BreakerCooldown:  "5m",
		},
		Executor: ExecutorConfig{
			DefaultTimeout: "10m",
			WrapperCommand: "claude",
		},
	}
}

// RateWindowDuration parses SafeguardsConfig.RateWindow, falling back to 60s.
func (c *Config) RateWindowDuration() time.Duration {
	return parseDurationOr(c.Safeguards.RateWindow, 60*time.Second)
}

// BreakerWindowDuration parses SafeguardsConfig.BreakerWindow, falling back to 60s.
func (c *Config) BreakerWindowDuration() time.Duration {
	return parseDurationOr(c.Safeguards.BreakerWindow, 60*time.Second)
}

// BreakerCooldownDuration parses SafeguardsConfig.BreakerCooldown, falling back to 5m.
func (c *Config) BreakerCooldownDuration() time.Duration {
	return parseDurationOr(c.Safeguards.BreakerCooldown, 5*time.Minute)
}

// DefaultTimeoutDuration parses ExecutorConfig.DefaultTimeout, falling back to 10m.
func (c *Config) DefaultTimeoutDuration() time.Duration {
	return parseDurationOr(c.Executor.DefaultTimeout, 10*time.Minute)
}

// SchedulerCheckInterval parses SchedulerConfig.CheckInterval, falling back to 10s.
func (c *Config) SchedulerCheckInterval() time.Duration {
	return parseDurationOr(c.Scheduler.CheckInterval, 10*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
