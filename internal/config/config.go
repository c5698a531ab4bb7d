// Package config loads psconcurrent host configuration.
package config

import (
	"fmt"
	"runtime"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"

	"github.com/sharpjs/PSConcurrent/pkg/common/validation"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling"
)

const module = "config"

// Default values.
const (
	DefaultStrategy    = string(scheduling.StrategyDispatcher)
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "console"
	DefaultRedisStream = "psconcurrent:output"
)

// Config is the host configuration. Field tags name the keys used in config
// files; environment variables use the same names upper-cased with a
// PSCONCURRENT_ prefix.
type Config struct {
	MaxConcurrency int      `toml:"max_concurrency" yaml:"max_concurrency"`
	Strategy       string   `toml:"strategy" yaml:"strategy"`
	Shell          string   `toml:"shell" yaml:"shell"`
	Jobs           []string `toml:"jobs" yaml:"jobs"`

	LogLevel  string `toml:"log_level" yaml:"log_level"`
	LogFormat string `toml:"log_format" yaml:"log_format"`

	MetricsAddr string `toml:"metrics_addr" yaml:"metrics_addr"`
	RedisAddr   string `toml:"redis_addr" yaml:"redis_addr"`
	RedisStream string `toml:"redis_stream" yaml:"redis_stream"`
	Schedule    string `toml:"schedule" yaml:"schedule"`

	JSONOutput bool `toml:"json_output" yaml:"json_output"`
	NoColor    bool `toml:"no_color" yaml:"no_color"`

	// File is the config file that was loaded, if any.
	File string `toml:"-" yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxConcurrency: runtime.NumCPU(),
		Strategy:       DefaultStrategy,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
		RedisStream:    DefaultRedisStream,
	}
}

// Validate checks every value that can be checked without side effects.
func (c *Config) Validate() error {
	if err := validation.ValidatePositive(module, "max_concurrency", c.MaxConcurrency); err != nil {
		return err
	}
	err := validation.ValidateOneOf(module, "strategy", c.Strategy,
		string(scheduling.StrategyDispatcher), string(scheduling.StrategyElastic))
	if err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s: invalid log_level: %w", module, err)
	}
	if err := validation.ValidateOneOf(module, "log_format", c.LogFormat, "console", "json"); err != nil {
		return err
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("%s: invalid schedule %q: %w", module, c.Schedule, err)
		}
	}
	return nil
}
