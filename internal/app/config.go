package app

import "errors"

// Default values shared between the CLI flag definitions and the settings
// file fallback logic.
const (
	DefaultBuildPath    = "castor.hcl"
	DefaultDigestsPath  = ".castordigests"
	DefaultSettingsPath = "castor.yaml"
	DefaultConcurrency  = int64(1)
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	BuildPath    string // .hcl file or directory of .hcl files
	DigestsPath  string // persisted digest cache
	SettingsPath string // optional castor.yaml

	Concurrency int64
	DryRun      bool

	List      bool
	StaleOnly bool
	MatchAll  bool

	LogFormat string
	LogLevel  string

	// Targets are artifact names to build, or anchored regular expressions
	// when listing.
	Targets []string
}

// NewConfig validates a Config and applies derived defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.BuildPath == "" {
		return nil, errors.New("BuildPath is a required configuration field and cannot be empty")
	}
	if cfg.List {
		if len(cfg.Targets) == 0 {
			cfg.MatchAll = true
		}
		return &cfg, nil
	}
	if len(cfg.Targets) == 0 {
		return nil, errors.New("at least one target artifact is required")
	}
	return &cfg, nil
}
