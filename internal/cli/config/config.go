// Package config loads the jp2dump configuration from defaults, an optional
// jp2dump.yaml, JP2DUMP_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Tree formats accepted by tree.format.
const (
	FormatNative   = "native"
	FormatStandard = "standard"
)

// Config represents the jp2dump configuration
type Config struct {
	Log         LogConfig  `mapstructure:"log"`
	Color       bool       `mapstructure:"color"`
	StrictBoxes bool       `mapstructure:"strict_boxes"`
	Tree        TreeConfig `mapstructure:"tree"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// TreeConfig selects the metadata tree printed and merged.
type TreeConfig struct {
	Format string `mapstructure:"format"`
}

// New returns a viper instance holding the defaults and looking for
// jp2dump.yaml in dir. Environment variables use the JP2DUMP prefix with
// dots replaced by underscores, so log.level is JP2DUMP_LOG_LEVEL.
func New(dir string) *viper.Viper {
	v := viper.New()

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.development", false)
	v.SetDefault("color", true)
	v.SetDefault("strict_boxes", false)
	v.SetDefault("tree.format", FormatNative)

	v.SetConfigName("jp2dump")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("JP2DUMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file if there is one and decodes the settings.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Tree.Format {
	case FormatNative, FormatStandard:
	default:
		return fmt.Errorf("tree.format must be %q or %q, got %q", FormatNative, FormatStandard, cfg.Tree.Format)
	}
	return nil
}
