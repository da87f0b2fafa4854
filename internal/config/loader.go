// Package config loads the dumper configuration from YAML with environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/swatzat-oss/cs2-dumper/internal/constants"
	"github.com/swatzat-oss/cs2-dumper/internal/safe"
)

// Loader handles loading and saving the configuration file.
type Loader struct {
	baseDir string
}

// NewLoader creates a new config loader.
// The base directory is resolved in this order:
//  1. CS2_DUMPER_CONFIG environment variable (the directory holding
//     config.yaml).
//  2. ~/.cs2-dumper.
//  3. A temporary directory, when there is no home directory. No file
//     exists there, so Load returns defaults with env overrides.
func NewLoader() *Loader {
	if dir := os.Getenv(constants.EnvConfigDir); dir != "" {
		return &Loader{baseDir: dir}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return &Loader{baseDir: filepath.Join(home, constants.DefaultDir)}
	}
	return &Loader{baseDir: filepath.Join(os.TempDir(), "cs2-dumper-fallback")}
}

// NewLoaderAt creates a loader rooted at dir.
func NewLoaderAt(dir string) *Loader {
	return &Loader{baseDir: dir}
}

// Path returns the path of the config file.
func (l *Loader) Path() string {
	return filepath.Join(l.baseDir, constants.ConfigFile)
}

// Load reads the config file, falling back to defaults when it does not
// exist, then applies environment overrides and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.LoadFile(l.Path())
}

// LoadFile is Load for an explicit path.
func (l *Loader) LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := safe.ReadFile(path, &safe.ReadFileOptions{MaxSize: 1 << 20, AllowSymlinks: true})
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := MergeFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to the config file, creating the directory if needed.
func (l *Loader) Save(cfg *Config) error {
	path := l.Path()

	//nolint:gosec // G301: directory needs standard permissions for traversal
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	//nolint:gosec // G306: config holds no secrets
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
