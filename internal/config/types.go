// Package config resolves, parses, validates, and defaults psadt-client
// configuration.
package config

import "time"

// Config is the fully materialized runtime configuration.
type Config struct {
	CloseApps      CloseAppsConfig
	IPC            IPCConfig
	Logging        LoggingConfig
	Launcher       LauncherConfig
	BlockExecution BlockExecutionConfig
	Environment    EnvironmentConfig
}

// CloseAppsConfig tunes the close-apps workflow.
type CloseAppsConfig struct {
	// PollInterval is how often a closing window is re-checked.
	PollInterval time.Duration
	// KillWaitTimeout bounds the wait after killing windowless processes.
	KillWaitTimeout time.Duration
	// ProcessPollInterval drives the running-process refresh for the dialog.
	ProcessPollInterval time.Duration
}

// IPCConfig bounds the encrypted pipe transport.
type IPCConfig struct {
	MaxFrameBytes int
}

// LoggingConfig controls the JSONL file log.
type LoggingConfig struct {
	Level string
	Path  string
}

// LauncherConfig identifies the supervising launcher process.
type LauncherConfig struct {
	Suffix string
}

// BlockExecutionConfig locates the Image File Execution Options key.
type BlockExecutionConfig struct {
	IFEOKey string
}

// EnvironmentConfig controls list-valued environment variable edits.
type EnvironmentConfig struct {
	ListSeparator string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
