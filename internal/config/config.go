// Package config loads provmark settings from an optional YAML file, the
// environment, and command-line flags.
//
// Precedence, highest first: flags explicitly set on the command line,
// environment variables, the config file, built-in defaults. Environment
// variables use the PROVMARK_ prefix with dots replaced by underscores
// (store.retry.max_attempts is PROVMARK_STORE_RETRY_MAX_ATTEMPTS). The
// secret is also read from SECRET_KEY.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/provmark/internal/fingerprint"
	"github.com/roach88/provmark/internal/provenance"
	"github.com/roach88/provmark/internal/stego"
	"github.com/roach88/provmark/internal/store"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "PROVMARK"

// ErrInvalid is returned by Validate. It wraps the specific problem.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full provmark configuration.
type Config struct {
	Secret string `mapstructure:"secret"`

	Fingerprint struct {
		Length int `mapstructure:"length"`
	} `mapstructure:"fingerprint"`

	Store struct {
		Driver  string        `mapstructure:"driver"`
		Path    string        `mapstructure:"path"`
		Timeout time.Duration `mapstructure:"timeout"`

		Retry struct {
			InitialInterval time.Duration `mapstructure:"initial_interval"`
			MaxInterval     time.Duration `mapstructure:"max_interval"`
			MaxElapsed      time.Duration `mapstructure:"max_elapsed"`
			MaxAttempts     int           `mapstructure:"max_attempts"`
		} `mapstructure:"retry"`
	} `mapstructure:"store"`

	Highlight struct {
		SquareSize int `mapstructure:"square_size"`
	} `mapstructure:"highlight"`

	Metrics struct {
		Textfile string `mapstructure:"textfile"`
	} `mapstructure:"metrics"`
}

// LoadOption configures Load.
type LoadOption func(*viper.Viper) error

// WithFlag binds a command-line flag to a config key. The flag only takes
// effect when it was set explicitly.
func WithFlag(key string, flag *pflag.Flag) LoadOption {
	return func(v *viper.Viper) error {
		if flag == nil {
			return nil
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %q: %w", flag.Name, err)
		}
		return nil
	}
}

// Load reads configuration. path may be empty, in which case only the
// environment, flags, and defaults apply. Load does not validate; call
// Validate before use.
func Load(path string, opts ...LoadOption) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("secret", EnvPrefix+"_SECRET", "SECRET_KEY"); err != nil {
		return nil, fmt.Errorf("bind secret: %w", err)
	}

	v.SetDefault("fingerprint.length", fingerprint.DefaultLength)
	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.path", "provmark.db")
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("store.retry.initial_interval", "100ms")
	v.SetDefault("store.retry.max_interval", "2s")
	v.SetDefault("store.retry.max_elapsed", "30s")
	v.SetDefault("store.retry.max_attempts", 5)
	v.SetDefault("highlight.square_size", stego.DefaultSquareSize)
	v.SetDefault("metrics.textfile", "")

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks every setting. A missing secret is reported as ErrInvalid
// wrapping fingerprint.ErrMissingSecret.
func (c *Config) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("%w: %w (set %s_SECRET or SECRET_KEY)", ErrInvalid, fingerprint.ErrMissingSecret, EnvPrefix)
	}
	return c.ValidateSettings()
}

// ValidateSettings checks everything Validate does except the secret. It is
// enough for commands that only read pixels.
func (c *Config) ValidateSettings() error {
	if err := fingerprint.ValidLength(c.Fingerprint.Length); err != nil {
		return fmt.Errorf("%w: fingerprint.length: %w", ErrInvalid, err)
	}
	if !slices.Contains(store.Drivers, c.Store.Driver) {
		return fmt.Errorf("%w: store.driver %q: must be one of %v", ErrInvalid, c.Store.Driver, store.Drivers)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("%w: store.path is empty", ErrInvalid)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("%w: store.timeout must be positive, got %s", ErrInvalid, c.Store.Timeout)
	}
	r := c.Store.Retry
	if r.InitialInterval <= 0 || r.MaxInterval < r.InitialInterval {
		return fmt.Errorf("%w: store.retry intervals: initial %s, max %s", ErrInvalid, r.InitialInterval, r.MaxInterval)
	}
	if r.MaxElapsed < 0 || r.MaxAttempts < 0 {
		return fmt.Errorf("%w: store.retry limits must not be negative", ErrInvalid)
	}
	if r.MaxElapsed == 0 && r.MaxAttempts == 0 {
		return fmt.Errorf("%w: store.retry needs max_elapsed or max_attempts", ErrInvalid)
	}
	if c.Highlight.SquareSize < 1 {
		return fmt.Errorf("%w: highlight.square_size must be at least 1, got %d", ErrInvalid, c.Highlight.SquareSize)
	}
	return nil
}

// RetryPolicy returns the store retry settings.
func (c *Config) RetryPolicy() provenance.RetryPolicy {
	return provenance.RetryPolicy{
		Timeout:         c.Store.Timeout,
		InitialInterval: c.Store.Retry.InitialInterval,
		MaxInterval:     c.Store.Retry.MaxInterval,
		MaxElapsed:      c.Store.Retry.MaxElapsed,
		MaxAttempts:     c.Store.Retry.MaxAttempts,
	}
}

// LogValue implements slog.LogValuer. The secret is never logged.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("secret_set", c.Secret != ""),
		slog.Int("fingerprint_length", c.Fingerprint.Length),
		slog.String("store_driver", c.Store.Driver),
		slog.String("store_path", c.Store.Path),
		slog.Duration("store_timeout", c.Store.Timeout),
		slog.Int("retry_max_attempts", c.Store.Retry.MaxAttempts),
	)
}
