package config

// Overrides carries command-line overrides. Zero values leave the config alone.
type Overrides struct {
	Path       string
	Debug      bool
	LogFile    string
	ChainCount int
}

// applyOverrides applies CLI overrides to the config.
func applyOverrides(cfg *Config, ov Overrides) {
	if ov.Debug {
		cfg.Logging.Level = "debug"
	}
	if ov.LogFile != "" {
		cfg.Logging.LogFile = ov.LogFile
	}
	if ov.ChainCount > 0 {
		cfg.IK.DefaultChainCount = ov.ChainCount
	}
}
