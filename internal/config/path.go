package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfigPath overrides the config location when set.
const EnvConfigPath = "PSADT_CLIENT_CONFIG"

// ResolvePath applies explicit/env/user-config-dir fallback rules.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
		return env, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.New("unable to resolve user config directory for config fallback")
	}
	return filepath.Join(dir, "psadt-client", "config.yaml"), nil
}
