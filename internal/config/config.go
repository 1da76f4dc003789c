// Package config loads the mockup tool's settings file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"pocket-curator/internal/image"
)

// AppName names the per-user config directory.
const AppName = "pocket-curator"

// Config holds all settings. Zero values in a loaded file keep the defaults.
type Config struct {
	// AssetDir holds the product photos referenced by relative catalog sources.
	AssetDir string `yaml:"asset_dir"`
	// Catalog is an optional YAML product catalog; empty uses the built-in one.
	Catalog string `yaml:"catalog"`
	// ExportDir is where the CLI and quick-save write downloads.
	ExportDir string `yaml:"export_dir"`

	ExportTimeout     time.Duration `yaml:"export_timeout"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
	MaxImageBytes     int64         `yaml:"max_image_bytes"`

	// Scaler is the interpolator used for the exported overlay.
	Scaler  string  `yaml:"scaler"`
	Remover Remover `yaml:"remover"`

	LogLevel string `yaml:"log_level"`
	// WatchCatalog reloads the catalog file when it changes.
	WatchCatalog bool `yaml:"watch_catalog"`
}

// Remover configures background removal.
type Remover struct {
	Tolerance int `yaml:"tolerance"`
	Kernel    int `yaml:"kernel"`
	CacheSize int `yaml:"cache_size"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		AssetDir:          "assets",
		ExportDir:         ".",
		ExportTimeout:     30 * time.Second,
		ProcessingTimeout: 60 * time.Second,
		HTTPTimeout:       20 * time.Second,
		MaxImageBytes:     image.DefaultMaxBytes,
		Scaler:            "catmullrom",
		Remover: Remover{
			Tolerance: 24,
			Kernel:    3,
			CacheSize: 32,
		},
		LogLevel: "info",
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, AppName, "config.yaml")
}

// Load reads the config at path over the defaults. A missing file is not an
// error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.ExportTimeout <= 0 {
		return fmt.Errorf("export_timeout must be positive")
	}
	if c.ProcessingTimeout <= 0 {
		return fmt.Errorf("processing_timeout must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("max_image_bytes must be positive")
	}
	if _, err := image.ScalerByName(c.Scaler); err != nil {
		return err
	}
	if c.Remover.Tolerance < 0 || c.Remover.Tolerance > 255 {
		return fmt.Errorf("remover.tolerance must be within 0-255, got %d", c.Remover.Tolerance)
	}
	if c.Remover.Kernel < 1 {
		return fmt.Errorf("remover.kernel must be at least 1")
	}
	if c.Remover.CacheSize < 1 {
		return fmt.Errorf("remover.cache_size must be at least 1")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}
