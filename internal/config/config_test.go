package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json5"))
	require.NoError(t, err)
	require.Equal(t, 3141, cfg.Gateway.Port)
	require.Equal(t, "claude", cfg.Executor.WrapperCommand)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{gateway: {port: 9000}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Gateway.Port)
	require.Equal(t, "127.0.0.1", cfg.Gateway.Host)
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	t.Setenv("AGENTSD_PORT", "4000")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json5"))
	require.NoError(t, err)
	require.Equal(t, 4000, cfg.Gateway.Port)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, home, ExpandHome("~"))
	require.Equal(t, filepath.Join(home, "foo"), ExpandHome("~/foo"))
	require.Equal(t, "/abs/path", ExpandHome("/abs/path"))
}
