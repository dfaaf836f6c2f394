package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/midgard-rig/internal/rigerr"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Placement.HeightDivisor != 57 {
		t.Errorf("expected height divisor 57, got %v", cfg.Placement.HeightDivisor)
	}
	if len(cfg.Placement.SpineBones) != 7 {
		t.Errorf("expected 7 spine bones, got %d", len(cfg.Placement.SpineBones))
	}
	if cfg.IK.DefaultChainCount != 2 {
		t.Errorf("expected chain count 2, got %d", cfg.IK.DefaultChainCount)
	}
	if cfg.IK.PoleDistanceFactor != -3 || cfg.Snap.PoleDistanceFactor != -3 {
		t.Errorf("expected pole distance factor -3, got %v / %v", cfg.IK.PoleDistanceFactor, cfg.Snap.PoleDistanceFactor)
	}
	if cfg.Twist.Count != 4 {
		t.Errorf("expected 4 twist bones, got %d", cfg.Twist.Count)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "rig.yaml")

	yamlContent := `
placement:
  height_divisor: 60
  spine_start: 31
ik:
  default_chain_count: 3
twist:
  count: 2
  influences: [0.5, 1.0]
logging:
  level: "debug"
  log_file: "rig.log"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Placement.HeightDivisor != 60 {
		t.Errorf("expected height divisor 60, got %v", cfg.Placement.HeightDivisor)
	}
	if cfg.Placement.SpineStart != 31 {
		t.Errorf("expected spine start 31, got %v", cfg.Placement.SpineStart)
	}
	// Untouched values keep their defaults
	if cfg.Placement.KneeHeight != 15 {
		t.Errorf("expected knee height 15, got %v", cfg.Placement.KneeHeight)
	}
	if cfg.IK.DefaultChainCount != 3 {
		t.Errorf("expected chain count 3, got %d", cfg.IK.DefaultChainCount)
	}
	if cfg.Twist.Count != 2 || len(cfg.Twist.Influences) != 2 {
		t.Errorf("expected 2 twist bones, got %d / %v", cfg.Twist.Count, cfg.Twist.Influences)
	}
	if cfg.Logging.LogFile != "rig.log" {
		t.Errorf("expected log file 'rig.log', got %s", cfg.Logging.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
placement:
  height_divisor: not a number
  invalid syntax here
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if err := loadFromFile(Default(), configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if err := loadFromFile(Default(), "/nonexistent/path/rig.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile("rig.yaml", []byte("ik:\n  default_chain_count: 2\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path == "" {
		t.Error("expected to find rig.yaml in current directory")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero divisor", func(c *Config) { c.Placement.HeightDivisor = 0 }},
		{"short spine lengths", func(c *Config) { c.Placement.SpineLengths = c.Placement.SpineLengths[:3] }},
		{"arm names", func(c *Config) { c.Placement.ArmBones = []string{"hand.L"} }},
		{"chain range", func(c *Config) { c.IK.MaxChainCount = 0 }},
		{"default chain", func(c *Config) { c.IK.DefaultChainCount = 11 }},
		{"ramp length", func(c *Config) { c.Twist.Influences = []float64{1} }},
		{"ramp value", func(c *Config) { c.Twist.Influences = []float64{0.1, 0.2, 0.3, 1.5} }},
		{"bind influences", func(c *Config) { c.Bind.MaxInfluences = 0 }},
		{"bind min weight", func(c *Config) { c.Bind.MinWeight = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, rigerr.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	tests := []struct {
		name   string
		ov     Overrides
		verify func(*testing.T, *Config)
	}{
		{
			name: "debug",
			ov:   Overrides{Debug: true},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name: "log file",
			ov:   Overrides{LogFile: "out.log"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.LogFile != "out.log" {
					t.Errorf("expected log file out.log, got %s", cfg.Logging.LogFile)
				}
			},
		},
		{
			name: "chain count",
			ov:   Overrides{ChainCount: 3},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.IK.DefaultChainCount != 3 {
					t.Errorf("expected chain count 3, got %d", cfg.IK.DefaultChainCount)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			applyOverrides(cfg, tt.ov)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "rig.yaml")

	yamlContent := `
ik:
  default_chain_count: 4
logging:
  level: warn
  log_file: file.log
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("RIG_LOG_LEVEL", "error")
	t.Setenv("RIG_CHAIN_COUNT", "5")
	t.Setenv("RIG_BIND_MAX_INFLUENCES", "2")

	cfg, err := Load(Overrides{Path: configPath, ChainCount: 6})
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Flag beats env beats file
	if cfg.IK.DefaultChainCount != 6 {
		t.Errorf("expected chain count 6 from flag, got %d", cfg.IK.DefaultChainCount)
	}
	// Env beats file
	if cfg.Logging.Level != "error" {
		t.Errorf("expected level 'error' from env, got %s", cfg.Logging.Level)
	}
	if cfg.Bind.MaxInfluences != 2 {
		t.Errorf("expected 2 bind influences from env, got %d", cfg.Bind.MaxInfluences)
	}
	// File beats default
	if cfg.Logging.LogFile != "file.log" {
		t.Errorf("expected log file from file, got %s", cfg.Logging.LogFile)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rig.yaml")
	cfg := Default()
	cfg.IK.DefaultChainCount = 3
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.IK.DefaultChainCount != 3 {
		t.Errorf("expected chain count 3 after reload, got %d", loaded.IK.DefaultChainCount)
	}
}
