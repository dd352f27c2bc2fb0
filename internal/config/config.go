// Package config handles nitrorig configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Validate for settings out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Poly type names accepted in BuildConfig.PolyType.
const (
	PolyTris         = "tris"
	PolyTrisAndQuads = "tris+quads"
)

// Config holds all nitrorig settings.
type Config struct {
	Build   BuildConfig   `yaml:"build"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// BuildConfig holds skeleton and primitive building settings.
type BuildConfig struct {
	PolyType    string `yaml:"poly_type"`    // "tris" or "tris+quads"
	EncodeNgons bool   `yaml:"encode_ngons"` // triangulate quads so they can be recovered
	Jobs        int    `yaml:"jobs"`         // models processed at once
}

// OutputConfig holds reporting settings.
type OutputConfig struct {
	DumpDir   string `yaml:"dump_dir"` // write a YAML report per model here
	PrintTree bool   `yaml:"print_tree"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			PolyType:    PolyTris,
			EncodeNgons: false,
			Jobs:        1,
		},
		Output: OutputConfig{
			DumpDir:   "",
			PrintTree: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks that the settings can be used.
func (c *Config) Validate() error {
	switch c.Build.PolyType {
	case PolyTris, PolyTrisAndQuads:
	default:
		return fmt.Errorf("%w: poly_type %q (want %q or %q)", ErrInvalidConfig, c.Build.PolyType, PolyTris, PolyTrisAndQuads)
	}
	if c.Build.Jobs < 1 {
		return fmt.Errorf("%w: jobs must be at least 1, got %d", ErrInvalidConfig, c.Build.Jobs)
	}
	if c.Build.EncodeNgons && c.Build.PolyType != PolyTrisAndQuads {
		return fmt.Errorf("%w: encode_ngons needs poly_type %q", ErrInvalidConfig, PolyTrisAndQuads)
	}
	return nil
}
