package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.General.DefaultDays != 30 {
		t.Errorf("DefaultDays = %d", cfg.General.DefaultDays)
	}
	if cfg.Cache.TTL() != 5*time.Minute {
		t.Errorf("TTL = %s", cfg.Cache.TTL())
	}
	if cfg.Cache.StaleWindow() != 30*time.Second {
		t.Errorf("StaleWindow = %s", cfg.Cache.StaleWindow())
	}
	if cfg.Sync.BatchSize != 25 {
		t.Errorf("BatchSize = %d", cfg.Sync.BatchSize)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.DefaultDays != 30 {
		t.Errorf("DefaultDays = %d", cfg.General.DefaultDays)
	}
	if Exists() {
		t.Error("Exists reported a config that was never written")
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.General.DefaultDays = 7
	cfg.General.LogDir = "/custom/logs"
	cfg.Cache.TTLSeconds = 120
	in := 42.0
	cfg.Pricing.Overrides = map[string]ModelPricingOverride{
		"claude-sonnet-4-5": {InputPerMTok: &in},
	}

	if err := Save(cfg); err != nil {
		t.Fatal(err)
	}
	if !Exists() {
		t.Fatal("config file not written")
	}

	got, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.General.DefaultDays != 7 {
		t.Errorf("DefaultDays = %d", got.General.DefaultDays)
	}
	if got.General.LogDir != "/custom/logs" {
		t.Errorf("LogDir = %q", got.General.LogDir)
	}
	if got.Cache.TTLSeconds != 120 {
		t.Errorf("TTLSeconds = %d", got.Cache.TTLSeconds)
	}
	ov, ok := got.Pricing.Overrides["claude-sonnet-4-5"]
	if !ok || ov.InputPerMTok == nil || *ov.InputPerMTok != 42.0 {
		t.Errorf("pricing override did not survive: %+v", got.Pricing.Overrides)
	}
}

func TestLogDirPrecedence(t *testing.T) {
	cfg := DefaultConfig()

	t.Setenv("CCSTATS_LOG_DIR", "/from/env")
	if got := LogDir(cfg); got != "/from/env" {
		t.Errorf("env precedence: got %q", got)
	}

	t.Setenv("CCSTATS_LOG_DIR", "")
	cfg.General.LogDir = "/from/config"
	if got := LogDir(cfg); got != "/from/config" {
		t.Errorf("config precedence: got %q", got)
	}

	cfg.General.LogDir = ""
	home, _ := os.UserHomeDir()
	if got := LogDir(cfg); got != filepath.Join(home, ".claude") {
		t.Errorf("default: got %q", got)
	}
}

func TestDBPathUnderCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	if got := DBPath(); got != filepath.Join("/tmp/xdg-cache", "ccstats", "usage.db") {
		t.Errorf("DBPath = %q", got)
	}
}
