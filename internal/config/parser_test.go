package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseOverlaysDefaults(t *testing.T) {
	input := `
# poll faster on lab machines
close_apps:
  poll_interval: 500ms
  kill_wait_timeout: 30s
logging:
  level: DEBUG
environment:
  list_separator: ","
`
	cfg, warnings, err := Parse(input, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, 500*time.Millisecond, cfg.CloseApps.PollInterval)
	require.Equal(t, 30*time.Second, cfg.CloseApps.KillWaitTimeout)
	require.Equal(t, time.Second, cfg.CloseApps.ProcessPollInterval)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, ",", cfg.Environment.ListSeparator)
	require.Equal(t, ".Launcher", cfg.Launcher.Suffix)
}

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, _, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	cfg, _, err = Parse("# only a comment\n", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestParseUnknownKeyFails(t *testing.T) {
	_, _, err := Parse("close_apps:\n  poll_every: 1s\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "poll_every")
}

func TestParseInvalidDurationNamesKey(t *testing.T) {
	_, _, err := Parse("close_apps:\n  kill_wait_timeout: soon\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "close_apps.kill_wait_timeout")
}

func TestParseRejectsMultipleDocuments(t *testing.T) {
	_, _, err := Parse("logging:\n  level: info\n---\nlogging:\n  level: warn\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple documents")
}

func TestParseValidatesResult(t *testing.T) {
	_, _, err := Parse("ipc:\n  max_frame_bytes: 0\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ipc.max_frame_bytes")
}
