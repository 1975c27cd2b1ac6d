// Package config loads engine settings from defaults, an optional YAML
// file and BITSEARCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/hailam/bitsearch/internal/board"
)

const envPrefix = "BITSEARCH"

type Config struct {
	HashMB     int    `mapstructure:"hash_mb"`
	Promotions string `mapstructure:"promotions"`
	Debug      bool   `mapstructure:"debug"`

	Book struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"book"`

	Search struct {
		MaxDepth int `mapstructure:"max_depth"`
	} `mapstructure:"search"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Storage struct {
		Enabled bool   `mapstructure:"enabled"`
		Dir     string `mapstructure:"dir"` // empty means the platform data directory
	} `mapstructure:"storage"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hash_mb", 200)
	v.SetDefault("promotions", "all")
	v.SetDefault("debug", false)
	v.SetDefault("book.enabled", true)
	v.SetDefault("book.path", "book.bin")
	v.SetDefault("search.max_depth", 64)
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.dir", "")
}

// Load reads the configuration. An explicit path must exist; without one,
// bitsearch.yaml is looked up in the working directory and in
// $XDG_CONFIG_HOME/bitsearch, and a missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("bitsearch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "bitsearch"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values viper cannot type-check.
func (c Config) Validate() error {
	if c.HashMB < 1 {
		return fmt.Errorf("hash_mb must be positive, got %d", c.HashMB)
	}
	if c.Search.MaxDepth < 1 {
		return fmt.Errorf("search.max_depth must be positive, got %d", c.Search.MaxDepth)
	}
	if _, err := board.ParsePromotionMode(c.Promotions); err != nil {
		return fmt.Errorf("promotions: %w", err)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// PromotionMode is the parsed promotions setting.
func (c Config) PromotionMode() board.PromotionMode {
	m, _ := board.ParsePromotionMode(c.Promotions)
	return m
}

// LogLevel is the configured level, forced to debug when Debug is set.
func (c Config) LogLevel() zerolog.Level {
	if c.Debug {
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
