package config

import (
	"fmt"
	"os"
	"path/filepath"

	"mcpdeck/pkg/logging"

	"gopkg.in/yaml.v3"
)

// DefaultConfigDirName is the directory under the user config dir holding
// config.yaml and the servers/ entity directory.
const DefaultConfigDirName = "mcpdeck"

// ResolveConfigDir returns the configuration directory. An explicit path
// wins; otherwise ~/.config/mcpdeck is used.
func ResolveConfigDir(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user config directory: %w", err)
	}
	return filepath.Join(base, DefaultConfigDirName), nil
}

// Load reads config.yaml from the given configuration directory and merges
// it over the defaults. A missing file is not an error; defaults apply.
func Load(configDir string) (MainConfig, error) {
	cfg := MainConfig{}

	path := filepath.Join(configDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Debug("Config", "No config.yaml at %s, using defaults", path)
			return DefaultConfig(), nil
		}
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	logging.Info("Config", "Loaded configuration from %s", path)
	return cfg, nil
}
