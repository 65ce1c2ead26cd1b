package config

import (
	"fmt"
	"strings"
)

var knownLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.CloseApps.PollInterval <= 0 {
		return nil, fmt.Errorf("close_apps.poll_interval must be > 0")
	}
	if cfg.CloseApps.KillWaitTimeout <= 0 {
		return nil, fmt.Errorf("close_apps.kill_wait_timeout must be > 0")
	}
	if cfg.CloseApps.ProcessPollInterval <= 0 {
		return nil, fmt.Errorf("close_apps.process_poll_interval must be > 0")
	}
	if cfg.IPC.MaxFrameBytes <= 0 {
		return nil, fmt.Errorf("ipc.max_frame_bytes must be > 0")
	}
	if !knownLevels[strings.ToLower(strings.TrimSpace(cfg.Logging.Level))] {
		return nil, fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if strings.TrimSpace(cfg.Launcher.Suffix) == "" {
		return nil, fmt.Errorf("launcher.suffix must not be empty")
	}
	if strings.TrimSpace(cfg.BlockExecution.IFEOKey) == "" {
		return nil, fmt.Errorf("block_execution.ifeo_key must not be empty")
	}
	if cfg.Environment.ListSeparator == "" {
		return nil, fmt.Errorf("environment.list_separator must not be empty")
	}

	if cfg.CloseApps.KillWaitTimeout < cfg.CloseApps.PollInterval {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"close_apps.kill_wait_timeout %s is shorter than close_apps.poll_interval %s",
			cfg.CloseApps.KillWaitTimeout, cfg.CloseApps.PollInterval)})
	}
	if cfg.IPC.MaxFrameBytes < 64<<10 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"ipc.max_frame_bytes %d is small; large dialog options may be rejected", cfg.IPC.MaxFrameBytes)})
	}
	return warnings, nil
}
