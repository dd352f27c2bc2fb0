package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// localConfigFile is looked up in the working directory before ConfigDir.
const localConfigFile = "nitrorig.yaml"

// Load builds the effective config. Later sources override earlier ones:
// defaults, then the config file (-config or the first one found by
// searchPaths), then command-line flags.
func Load() (*Config, error) {
	cfg := Default()

	path := ConfigPath()
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// searchPaths lists where a config file is looked for, in order.
func searchPaths() []string {
	return []string{
		localConfigFile,
		filepath.Join(ConfigDir(), "config.yaml"),
	}
}

// findConfigFile returns the first existing file of searchPaths, or "".
func findConfigFile() string {
	for _, path := range searchPaths() {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user config directory for nitrorig.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "NitroRig")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "NitroRig")
		}
		return filepath.Join(home, "AppData", "Roaming", "NitroRig")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nitro-rig")
	}
	return filepath.Join(home, ".config", "nitro-rig")
}

// loadFromFile decodes the YAML file at path over cfg. Keys missing from the
// file keep their current value; unknown keys are an error.
func loadFromFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	err = dec.Decode(cfg)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
