// Package config loads and persists engine configuration.
//
// Configuration lives in arch/config.yaml under the project root. Every
// value has a default so a missing file is never an error — only a file
// that exists and cannot be decoded is.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ArchDirName is the directory under the project root where all tracking
// state lives.
const ArchDirName = "arch"

// ConfigFileName is the configuration filename within the arch directory.
const ConfigFileName = "config.yaml"

// Weights holds the risk-score contributions. The specific values are a
// heuristic default, not ground truth, so they are configuration rather
// than constants.
type Weights struct {
	Breaking          int `yaml:"breaking"`
	Security          int `yaml:"security"`
	EffortHigh        int `yaml:"effort_high"`
	EffortMedium      int `yaml:"effort_medium"`
	EffortLow         int `yaml:"effort_low"`
	ExtraComponent    int `yaml:"extra_component"`
	ExtraComponentCap int `yaml:"extra_component_cap"`
	DisruptiveType    int `yaml:"disruptive_type"`
	MaxScore          int `yaml:"max_score"`
}

// DefaultWeights returns the default risk-score weights.
func DefaultWeights() Weights {
	return Weights{
		Breaking:          10,
		Security:          8,
		EffortHigh:        6,
		EffortMedium:      3,
		EffortLow:         1,
		ExtraComponent:    1,
		ExtraComponentCap: 5,
		DisruptiveType:    8,
		MaxScore:          30,
	}
}

// Config is the engine configuration for one tracked project.
type Config struct {
	Project string `yaml:"project"`
	// DocsGlobs are doublestar patterns, relative to the project root,
	// that locate PRP documents for synchronization.
	DocsGlobs []string `yaml:"docs_globs"`
	// LookbackDays bounds conflict detection and impact grouping.
	LookbackDays int `yaml:"lookback_days"`
	// RelatedCap limits the related-changes list in an impact report.
	RelatedCap int `yaml:"related_cap"`
	// MaxParallel bounds concurrent document regeneration in a batch sync.
	MaxParallel int     `yaml:"max_parallel"`
	Weights     Weights `yaml:"weights"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		DocsGlobs:    []string{"docs/prps/**/*.md"},
		LookbackDays: 30,
		RelatedCap:   5,
		MaxParallel:  4,
		Weights:      DefaultWeights(),
	}
}

// ArchPath returns the absolute path to the arch/ directory.
func ArchPath(projectRoot string) string {
	return filepath.Join(projectRoot, ArchDirName)
}

// Path returns the absolute path to the project's config.yaml.
func Path(projectRoot string) string {
	return filepath.Join(ArchPath(projectRoot), ConfigFileName)
}

// Exists reports whether tracking has been initialized in projectRoot.
func Exists(projectRoot string) bool {
	_, err := os.Stat(Path(projectRoot))
	return err == nil
}

// Load reads the project configuration, filling unset fields from Default.
// A missing file returns Default unchanged.
func Load(projectRoot string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(projectRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config.yaml: %w", err)
	}

	// Re-default anything the file zeroed out.
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = Default().LookbackDays
	}
	if cfg.RelatedCap <= 0 {
		cfg.RelatedCap = Default().RelatedCap
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = Default().MaxParallel
	}
	if len(cfg.DocsGlobs) == 0 {
		cfg.DocsGlobs = Default().DocsGlobs
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}

	return cfg, nil
}

// Save writes the configuration to arch/config.yaml, creating the arch
// directory if needed.
func Save(projectRoot string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(ArchPath(projectRoot), 0o755); err != nil {
		return fmt.Errorf("creating arch directory: %w", err)
	}

	return os.WriteFile(Path(projectRoot), data, 0o644)
}
