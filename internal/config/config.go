// Package config loads the optional perms.yaml configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kubiakdev/perms/internal/logging"
	"github.com/kubiakdev/perms/pkg/perms"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "perms.yaml"

// EnvPrefix prefixes environment overrides, e.g. PERMS_REQUEST_BASE_CODE.
const EnvPrefix = "PERMS"

// validate is a package-level singleton; building a validator is expensive.
var validate = validator.New()

// Config represents perms.yaml.
type Config struct {
	Request RequestConfig `yaml:"request" mapstructure:"request"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Errors  ErrorsConfig  `yaml:"errors" mapstructure:"errors"`
}

// RequestConfig controls how permission requests are issued.
type RequestConfig struct {
	BaseCode    int           `yaml:"base_code" mapstructure:"base_code" validate:"min=1,max=65535"`
	SkipGranted bool          `yaml:"skip_granted" mapstructure:"skip_granted"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=console json"`
}

// ErrorsConfig configures the global error handler.
type ErrorsConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		Request: RequestConfig{
			BaseCode:    perms.DefaultBaseRequestCode,
			SkipGranted: true,
			Timeout:     30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadOptional reads perms.yaml from dir if present. Keys missing from the
// file keep their default values.
func LoadOptional(dir string) (*Config, error) {
	cfg := Defaults()

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewViper returns a viper instance preloaded with defaults and PERMS_
// environment overrides. Callers add a config path or file and bind flags
// before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	v.SetConfigType("yaml")

	d := Defaults()
	v.SetDefault("request.base_code", d.Request.BaseCode)
	v.SetDefault("request.skip_granted", d.Request.SkipGranted)
	v.SetDefault("request.timeout", d.Request.Timeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("errors.verbose", d.Errors.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration through v. A missing file found by search
// path is not an error; an explicitly set file that cannot be read is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags on c.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// LogLevel returns the zerolog level named by Log.Level.
func (c *Config) LogLevel() zerolog.Level {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// PermsOptions translates the request settings into orchestrator options.
func (c *Config) PermsOptions(logger zerolog.Logger) []perms.Option {
	return []perms.Option{
		perms.WithBaseRequestCode(c.Request.BaseCode),
		perms.WithSkipGranted(c.Request.SkipGranted),
		perms.WithLogger(logger),
	}
}
