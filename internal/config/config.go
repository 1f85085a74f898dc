// Package config loads and persists ccstats configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all ccstats configuration.
type Config struct {
	General GeneralConfig    `toml:"general"`
	Cache   CacheConfig      `toml:"cache"`
	Sync    SyncConfig       `toml:"sync"`
	Daemon  DaemonConfig     `toml:"daemon"`
	Pricing PricingOverrides `toml:"pricing"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	DefaultDays int    `toml:"default_days"`
	LogDir      string `toml:"log_dir,omitempty"`
}

// CacheConfig controls the freshness controller.
type CacheConfig struct {
	TTLSeconds         int `toml:"ttl_seconds"`
	StaleWindowSeconds int `toml:"stale_window_seconds"`
}

// TTL returns the cache entry time-to-live.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// StaleWindow returns the near-expiry window during which entries
// are still servable but flagged stale.
func (c CacheConfig) StaleWindow() time.Duration {
	return time.Duration(c.StaleWindowSeconds) * time.Second
}

// SyncConfig controls ingestion batching.
type SyncConfig struct {
	BatchSize int `toml:"batch_size"`
}

// DaemonConfig holds background service settings.
type DaemonConfig struct {
	Addr            string `toml:"addr,omitempty"`
	IntervalSeconds int    `toml:"interval_seconds"`
}

// PricingOverrides allows user-defined pricing for specific models.
type PricingOverrides struct {
	Overrides map[string]ModelPricingOverride `toml:"overrides,omitempty"`
}

// ModelPricingOverride holds per-model rate overrides.
type ModelPricingOverride struct {
	InputPerMTok      *float64 `toml:"input_per_mtok,omitempty"`
	OutputPerMTok     *float64 `toml:"output_per_mtok,omitempty"`
	CacheWritePerMTok *float64 `toml:"cache_write_per_mtok,omitempty"`
	CacheReadPerMTok  *float64 `toml:"cache_read_per_mtok,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{DefaultDays: 30},
		Cache:   CacheConfig{TTLSeconds: 300, StaleWindowSeconds: 30},
		Sync:    SyncConfig{BatchSize: 25},
		Daemon:  DaemonConfig{IntervalSeconds: 60},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ccstats")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ccstats")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// LogDir returns the active log directory: env var, config, or the
// default Claude data directory, in that order.
func LogDir(cfg Config) string {
	if dir := os.Getenv("CCSTATS_LOG_DIR"); dir != "" {
		return dir
	}
	if cfg.General.LogDir != "" {
		return cfg.General.LogDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude")
}

// CacheDir returns the platform-appropriate cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "ccstats")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "ccstats")
}

// DBPath returns the full path to the aggregate database.
func DBPath() string {
	return filepath.Join(CacheDir(), "usage.db")
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
