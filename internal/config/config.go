package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	// Events shorter than SkipMillis are dropped while reading the trace.
	SkipMillis int `yaml:"skip_millis" toml:"skip_millis" json:"skip_millis" env:"HOTSPOTS_SKIP_MILLIS" env-default:"100"`
	// Events at least ForceMillis long are always reported.
	ForceMillis   int     `yaml:"force_millis" toml:"force_millis" json:"force_millis" env:"HOTSPOTS_FORCE_MILLIS" env-default:"500"`
	MinPercentage float64 `yaml:"min_percentage" toml:"min_percentage" json:"min_percentage" env:"HOTSPOTS_MIN_PERCENTAGE" env-default:"0.6"`

	ImportExpressionThreshold int  `yaml:"import_expression_threshold" toml:"import_expression_threshold" json:"import_expression_threshold" env:"HOTSPOTS_IMPORT_EXPRESSION_THRESHOLD" env-default:"10"`
	ExpandTypes               bool `yaml:"expand_types" toml:"expand_types" json:"expand_types" env:"HOTSPOTS_EXPAND_TYPES" env-default:"true"`

	Color    string `yaml:"color" toml:"color" json:"color" env:"HOTSPOTS_COLOR" env-default:"auto"`
	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level" env:"HOTSPOTS_LOG_LEVEL" env-default:"info"`
	Workers  int    `yaml:"workers" toml:"workers" json:"workers" env:"HOTSPOTS_WORKERS" env-default:"0"`

	Environment string `yaml:"environment" toml:"environment" json:"environment" env:"SENTRY_ENVIRONMENT" env-default:"development"`
	SentryDSN   string `yaml:"sentry_dsn" toml:"sentry_dsn" json:"sentry_dsn" env:"SENTRY_DSN"`
	Port        string `yaml:"port" toml:"port" json:"port" env:"PORT" env-default:"8080"`
}

// Load reads the configuration from path when it is set, and from the
// environment otherwise. Defaults apply to every field left unset.
func Load(path string) (Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.SkipMillis < 0 {
		return fmt.Errorf("config: skip_millis must not be negative, got %d", c.SkipMillis)
	}
	if c.ForceMillis < 0 {
		return fmt.Errorf("config: force_millis must not be negative, got %d", c.ForceMillis)
	}
	if c.MinPercentage < 0 || c.MinPercentage > 1 {
		return fmt.Errorf("config: min_percentage must be within [0, 1], got %v", c.MinPercentage)
	}
	if c.ImportExpressionThreshold < 1 {
		return fmt.Errorf("config: import_expression_threshold must be positive, got %d", c.ImportExpressionThreshold)
	}
	switch c.Color {
	case "auto", "on", "off":
	default:
		return fmt.Errorf("config: color must be one of auto, on, off, got %q", c.Color)
	}
	return nil
}

func (c Config) SkipDuration() time.Duration {
	return time.Duration(c.SkipMillis) * time.Millisecond
}

func (c Config) ForceDuration() time.Duration {
	return time.Duration(c.ForceMillis) * time.Millisecond
}
