package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type yamlConfig struct {
	CloseApps      *yamlCloseApps      `yaml:"close_apps"`
	IPC            *yamlIPC            `yaml:"ipc"`
	Logging        *yamlLogging        `yaml:"logging"`
	Launcher       *yamlLauncher       `yaml:"launcher"`
	BlockExecution *yamlBlockExecution `yaml:"block_execution"`
	Environment    *yamlEnvironment    `yaml:"environment"`
}

type yamlCloseApps struct {
	PollInterval        *string `yaml:"poll_interval"`
	KillWaitTimeout     *string `yaml:"kill_wait_timeout"`
	ProcessPollInterval *string `yaml:"process_poll_interval"`
}

type yamlIPC struct {
	MaxFrameBytes *int `yaml:"max_frame_bytes"`
}

type yamlLogging struct {
	Level *string `yaml:"level"`
	Path  *string `yaml:"path"`
}

type yamlLauncher struct {
	Suffix *string `yaml:"suffix"`
}

type yamlBlockExecution struct {
	IFEOKey *string `yaml:"ifeo_key"`
}

type yamlEnvironment struct {
	ListSeparator *string `yaml:"list_separator"`
}

// Parse overlays YAML content onto base, then validates the result. Unknown
// keys are rejected.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	decoder := yaml.NewDecoder(strings.NewReader(content))
	decoder.KnownFields(true)

	var payload yamlConfig
	if err := decoder.Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, nil, fmt.Errorf("decode yaml: %w", err)
	}
	var extra yaml.Node
	if err := decoder.Decode(&extra); err == nil {
		return Config{}, nil, fmt.Errorf("decode yaml: line %d: multiple documents are not supported", extra.Line)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload yamlConfig) applyTo(cfg *Config) error {
	if c := payload.CloseApps; c != nil {
		if err := applyDuration(&cfg.CloseApps.PollInterval, c.PollInterval, "close_apps.poll_interval"); err != nil {
			return err
		}
		if err := applyDuration(&cfg.CloseApps.KillWaitTimeout, c.KillWaitTimeout, "close_apps.kill_wait_timeout"); err != nil {
			return err
		}
		if err := applyDuration(&cfg.CloseApps.ProcessPollInterval, c.ProcessPollInterval, "close_apps.process_poll_interval"); err != nil {
			return err
		}
	}

	if payload.IPC != nil && payload.IPC.MaxFrameBytes != nil {
		cfg.IPC.MaxFrameBytes = *payload.IPC.MaxFrameBytes
	}

	if l := payload.Logging; l != nil {
		if l.Level != nil {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*l.Level))
		}
		if l.Path != nil {
			cfg.Logging.Path = strings.TrimSpace(*l.Path)
		}
	}

	if payload.Launcher != nil && payload.Launcher.Suffix != nil {
		cfg.Launcher.Suffix = strings.TrimSpace(*payload.Launcher.Suffix)
	}
	if payload.BlockExecution != nil && payload.BlockExecution.IFEOKey != nil {
		cfg.BlockExecution.IFEOKey = strings.TrimSpace(*payload.BlockExecution.IFEOKey)
	}
	if payload.Environment != nil && payload.Environment.ListSeparator != nil {
		cfg.Environment.ListSeparator = *payload.Environment.ListSeparator
	}
	return nil
}

func applyDuration(dst *time.Duration, raw *string, key string) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*raw))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
