// Package config loads pipeline settings from defaults, an optional .env file
// and POKEDEX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for pipeline settings.
const envPrefix = "POKEDEX"

// DefaultEnvFile is the dotenv file read by Load when present.
const DefaultEnvFile = ".env"

// Defaults reproduce a zero-configuration run against the public catalog.
const (
	DefaultBaseURL     = "https://pokeapi.co/api/v2/pokemon"
	DefaultLimit       = 10
	DefaultDatabase    = "pokedex.duckdb"
	DefaultOutputDir   = "."
	DefaultTimeout     = 10 * time.Second
	DefaultPreviewRows = 5
	DefaultLogLevel    = "info"
	DefaultLogPretty   = true
	DefaultCacheTTL    = time.Hour
)

// Config is the full pipeline configuration.
type Config struct {
	BaseURL     string        `mapstructure:"base_url"`
	Limit       int           `mapstructure:"limit"`
	Database    string        `mapstructure:"database"`
	OutputDir   string        `mapstructure:"output_dir"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PreviewRows int           `mapstructure:"preview_rows"`
	UserAgent   string        `mapstructure:"user_agent"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	// RedisAddr enables the page cache when non-empty
	RedisAddr string        `mapstructure:"redis_addr"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`

	// MetricsFile receives a Prometheus textfile at exit when non-empty
	MetricsFile string `mapstructure:"metrics_file"`
}

// Load reads DefaultEnvFile if it exists and returns the validated
// configuration.
func Load() (*Config, error) {
	return LoadFile(DefaultEnvFile)
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an
// error; variables already set in the environment win over the file.
func LoadFile(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("limit", DefaultLimit)
	v.SetDefault("database", DefaultDatabase)
	v.SetDefault("output_dir", DefaultOutputDir)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("preview_rows", DefaultPreviewRows)
	v.SetDefault("user_agent", "")

	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_pretty", DefaultLogPretty)

	v.SetDefault("redis_addr", "")
	v.SetDefault("cache_ttl", DefaultCacheTTL)

	v.SetDefault("metrics_file", "")
}

// Validate checks the configuration for values no run can use.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL)
	}
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", c.Limit)
	}
	if c.Database == "" {
		return errors.New("database is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.PreviewRows < 0 {
		return fmt.Errorf("preview_rows must not be negative, got %d", c.PreviewRows)
	}
	if c.RedisAddr != "" && c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive when redis_addr is set, got %s", c.CacheTTL)
	}
	return nil
}

// CacheEnabled reports whether the Redis page cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}
