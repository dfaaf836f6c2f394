package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < env < flags.
func Load(ov Overrides) (*Config, error) {
	cfg := Default()

	// Explicit path takes priority over the standard locations
	configPath := ov.Path
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	applyOverrides(cfg, ov)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./rig.yaml",
		filepath.Join(ConfigDir(), "rig.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "MidgardRig")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "MidgardRig")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "midgard-rig")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "midgard-rig")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv applies RIG_* environment variables on top of cfg.
func loadFromEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
