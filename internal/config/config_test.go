package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "human" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if cfg.Naming.HashThreshold != 64 {
		t.Errorf("hashThreshold = %d, want 64", cfg.Naming.HashThreshold)
	}
	if cfg.Trace.ExtraTagChanges != 3 || cfg.Trace.MaxLinkDepth != 16 {
		t.Errorf("trace defaults = %+v", cfg.Trace)
	}
	if cfg.Cache.MaxEntries != 4096 {
		t.Errorf("cache.maxEntries = %d, want 4096", cfg.Cache.MaxEntries)
	}
	if cfg.Store.Path != ".topo" || cfg.Store.CompressionLevel != 3 {
		t.Errorf("store defaults = %+v", cfg.Store)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Naming.HashThreshold != 64 || cfg.Logging.Level != "info" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Store.Path != filepath.Join(dir, ".topo") {
		t.Errorf("store path = %q, want it anchored under %q", cfg.Store.Path, dir)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[logging]
level = "debug"

[naming]
hashThreshold = 32

[store]
path = "data"
compressionLevel = 1
`
	if err := os.WriteFile(filepath.Join(dir, "topo.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "human" {
		t.Errorf("unset key lost its default: format = %q", cfg.Logging.Format)
	}
	if cfg.Naming.HashThreshold != 32 {
		t.Errorf("hashThreshold = %d, want 32", cfg.Naming.HashThreshold)
	}
	if cfg.Store.CompressionLevel != 1 {
		t.Errorf("compressionLevel = %d, want 1", cfg.Store.CompressionLevel)
	}
	if cfg.Store.Path != filepath.Join(dir, "data") {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("TOPO_LOGGING_LEVEL", "error")
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("logging.level = %q, want env override", cfg.Logging.Level)
	}
}
