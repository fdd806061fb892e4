// Package config loads roofmeasure settings from defaults, an optional YAML
// file, ROOFMEASURE_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pspoerri/roofmeasure/internal/area"
	"github.com/pspoerri/roofmeasure/internal/encode"
	"github.com/pspoerri/roofmeasure/internal/pitch"
)

// EnvPrefix prefixes every environment variable: ROOFMEASURE_FETCH_API_KEY
// sets fetch.api_key.
const EnvPrefix = "ROOFMEASURE"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Area     AreaConfig     `mapstructure:"area"`
	Encode   EncodeConfig   `mapstructure:"encode"`
	Estimate EstimateConfig `mapstructure:"estimate"`
}

type ServerConfig struct {
	Bind         string        `mapstructure:"bind"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxBodyBytes bounds uploaded rasters and JSON bodies.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Bind, s.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type FetchConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	APIKeyHosts []string      `mapstructure:"api_key_hosts"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// CacheSize is the raster cache capacity in MiB; 0 disables caching.
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	UserAgent string        `mapstructure:"user_agent"`
	MaxBytes  int64         `mapstructure:"max_bytes"`
}

type AreaConfig struct {
	Method string `mapstructure:"method"`
}

type EncodeConfig struct {
	Format  string `mapstructure:"format"`
	Quality int    `mapstructure:"quality"`
}

type EstimateConfig struct {
	DefaultPitch string `mapstructure:"default_pitch"`
	DefaultWaste int    `mapstructure:"default_waste"`
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.bind", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_body_bytes", 64<<20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("fetch.api_key", "")
	v.SetDefault("fetch.api_key_hosts", []string{"solar.googleapis.com"})
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.cache_size", 256)
	v.SetDefault("fetch.cache_ttl", 10*time.Minute)
	v.SetDefault("fetch.user_agent", "roofmeasure/dev")
	v.SetDefault("fetch.max_bytes", 256<<20)
	v.SetDefault("area.method", string(area.MethodOrb))
	v.SetDefault("encode.format", "png")
	v.SetDefault("encode.quality", 85)
	v.SetDefault("estimate.default_pitch", "standard")
	v.SetDefault("estimate.default_waste", 10)
}

// Options selects the configuration sources of Load.
type Options struct {
	// File is an explicit config file. When empty, roofmeasure.yaml is
	// searched in the working directory and $HOME.
	File string
	// Flags are bound on top of file and environment, keyed by flag name.
	// A flag named "port" overrides server.port when FlagKeys maps it.
	Flags    *pflag.FlagSet
	FlagKeys map[string]string
}

// Load reads configuration from defaults, file, environment and flags, in
// increasing precedence, and validates the result.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("roofmeasure")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	// Environment variables: ROOFMEASURE_SERVER_PORT → server.port
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range opts.FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable and reports every
// problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, "server.max_body_bytes must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, "fetch.timeout must be positive")
	}
	if c.Fetch.CacheSize < 0 {
		errs = append(errs, "fetch.cache_size must not be negative")
	}
	if c.Fetch.CacheSize > 0 && c.Fetch.CacheTTL <= 0 {
		errs = append(errs, "fetch.cache_ttl must be positive when caching is enabled")
	}
	if c.Fetch.MaxBytes <= 0 {
		errs = append(errs, "fetch.max_bytes must be positive")
	}
	if _, err := area.ParseMethod(c.Area.Method); err != nil {
		errs = append(errs, fmt.Sprintf("area.method: %v", err))
	}
	if _, err := encode.NewEncoder(c.Encode.Format, c.Encode.Quality); err != nil {
		errs = append(errs, fmt.Sprintf("encode.format: %v", err))
	}
	if c.Encode.Quality < 1 || c.Encode.Quality > 100 {
		errs = append(errs, fmt.Sprintf("encode.quality must be 1-100, got %d", c.Encode.Quality))
	}
	if _, err := pitch.ParseCategory(c.Estimate.DefaultPitch); err != nil {
		errs = append(errs, fmt.Sprintf("estimate.default_pitch: %v", err))
	}
	if c.Estimate.DefaultWaste < pitch.MinWaste || c.Estimate.DefaultWaste > pitch.MaxWaste {
		errs = append(errs, fmt.Sprintf("estimate.default_waste must be %d-%d, got %d",
			pitch.MinWaste, pitch.MaxWaste, c.Estimate.DefaultWaste))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
