package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.yaml"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	fromEnv := filepath.Join(t.TempDir(), "env.yaml")
	t.Setenv(EnvConfigPath, fromEnv)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, fromEnv, resolved)

	t.Setenv(EnvConfigPath, "")
	dir, err := os.UserConfigDir()
	require.NoError(t, err)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "psadt-client", "config.yaml"), resolved)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, SourceExplicit, loaded.Source)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingYAMLParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `
close_apps:
  poll_interval: 3s
launcher:
  suffix: .Supervisor
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, path, loaded.Path)
	require.Equal(t, 3*time.Second, loaded.Config.CloseApps.PollInterval)
	require.Equal(t, ".Supervisor", loaded.Config.Launcher.Suffix)
}

func TestLoadRecordsEnvSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ipc:\n  max_frame_bytes: 4096\n"), 0o600))
	t.Setenv(EnvConfigPath, path)

	loaded, err := Load("")
	require.NoError(t, err)
	require.Equal(t, SourceEnv, loaded.Source)
	require.Equal(t, 4096, loaded.Config.IPC.MaxFrameBytes)
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("close_apps: [unterminated\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}
