// Package config loads topo configuration from topo.toml and TOPO_* env vars.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete topo configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Naming  NamingConfig  `mapstructure:"naming"`
	Trace   TraceConfig   `mapstructure:"trace"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Store   StoreConfig   `mapstructure:"store"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, human
}

// NamingConfig controls combo-name synthesis
type NamingConfig struct {
	// HashThreshold is the durable-name length above which names are
	// interned through the document hasher and stored as #<id> handles.
	HashThreshold int `mapstructure:"hashThreshold"`
}

// TraceConfig bounds history and correspondence walks
type TraceConfig struct {
	// ExtraTagChanges is how many tag changes the correspondence shortcut
	// keeps tracing after the source tag was first seen.
	ExtraTagChanges int `mapstructure:"extraTagChanges"`
	// MaxLinkDepth bounds transparent link-proxy resolution.
	MaxLinkDepth int `mapstructure:"maxLinkDepth"`
}

// CacheConfig controls the process-wide shape cache
type CacheConfig struct {
	MaxEntries int `mapstructure:"maxEntries"`
}

// StoreConfig controls document persistence
type StoreConfig struct {
	Path string `mapstructure:"path"` // directory holding topo.db
	// CompressionLevel is the zstd level for shape snapshots (1-4).
	CompressionLevel int `mapstructure:"compressionLevel"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "human"},
		Naming:  NamingConfig{HashThreshold: 64},
		Trace:   TraceConfig{ExtraTagChanges: 3, MaxLinkDepth: 16},
		Cache:   CacheConfig{MaxEntries: 4096},
		Store:   StoreConfig{Path: ".topo", CompressionLevel: 3},
	}
}

// Load reads configuration from dir/topo.toml, falling back to defaults.
// Environment variables with the TOPO_ prefix override file values,
// e.g. TOPO_LOGGING_LEVEL=debug.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("topo")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("TOPO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if !filepath.IsAbs(cfg.Store.Path) {
		cfg.Store.Path = filepath.Join(dir, cfg.Store.Path)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("naming.hashThreshold", cfg.Naming.HashThreshold)
	v.SetDefault("trace.extraTagChanges", cfg.Trace.ExtraTagChanges)
	v.SetDefault("trace.maxLinkDepth", cfg.Trace.MaxLinkDepth)
	v.SetDefault("cache.maxEntries", cfg.Cache.MaxEntries)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("store.compressionLevel", cfg.Store.CompressionLevel)
}
