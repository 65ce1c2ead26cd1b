package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Source names where the config path came from.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceEnv      Source = "env"
	SourceUserDir  Source = "user_config_dir"
)

// Loaded is a materialized config together with where it was read from.
// A missing file yields Default() and a warning, never an error.
type Loaded struct {
	Path     string
	Source   Source
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load reads the config at explicitPath, $PSADT_CLIENT_CONFIG, or the user
// config dir, in that order.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}
	loaded := Loaded{Path: path, Source: sourceOf(explicitPath), Config: Default()}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", path),
		})
		return loaded, nil
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, warnings, err := Parse(string(content), loaded.Config)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	loaded.Config, loaded.Warnings, loaded.Exists = cfg, warnings, true
	return loaded, nil
}

func sourceOf(explicitPath string) Source {
	switch {
	case strings.TrimSpace(explicitPath) != "":
		return SourceExplicit
	case strings.TrimSpace(os.Getenv(EnvConfigPath)) != "":
		return SourceEnv
	default:
		return SourceUserDir
	}
}
