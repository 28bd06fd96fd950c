// Package config provides configuration management for the dataanchor CLI.
package config

import (
	"os"
	"path/filepath"
)

// FileName is the name of the config file inside Dir.
const FileName = "config.yaml"

// CacheDir returns the dataanchor cache directory.
// Uses XDG_CACHE_HOME/dataanchor, defaulting to ~/.cache/dataanchor.
func CacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "dataanchor"), nil
}

// Dir returns the dataanchor config directory.
// Uses XDG_CONFIG_HOME/dataanchor, defaulting to ~/.config/dataanchor.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "dataanchor"), nil
}

// Path returns the default config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}
