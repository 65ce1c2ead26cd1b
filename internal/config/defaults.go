package config

import (
	"time"

	"github.com/psadt/psadt-client/internal/pipecrypt"
)

// DefaultIFEOKey is the Image File Execution Options parent key.
const DefaultIFEOKey = `HKEY_LOCAL_MACHINE\SOFTWARE\Microsoft\Windows NT\CurrentVersion\Image File Execution Options`

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		CloseApps: CloseAppsConfig{
			PollInterval:        2 * time.Second,
			KillWaitTimeout:     10 * time.Second,
			ProcessPollInterval: time.Second,
		},
		IPC:            IPCConfig{MaxFrameBytes: pipecrypt.DefaultMaxFrameSize},
		Logging:        LoggingConfig{Level: "info"},
		Launcher:       LauncherConfig{Suffix: ".Launcher"},
		BlockExecution: BlockExecutionConfig{IFEOKey: DefaultIFEOKey},
		Environment:    EnvironmentConfig{ListSeparator: ";"},
	}
}
