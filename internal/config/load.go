package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PSCONCURRENT_"

// projectFiles are searched in the working directory, in order.
var projectFiles = []string{
	"psconcurrent.toml",
	".psconcurrent.toml",
	"psconcurrent.yaml",
	"psconcurrent.yml",
}

// Load builds the configuration from, in increasing priority:
// 1. Defaults
// 2. The config file: path if given, else the first project file found
// 3. Environment variables
// 4. Flags that were set on the command line
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findProjectFile()
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
		cfg.File = path
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if flags != nil {
		if err := applyFlags(cfg, flags); err != nil {
			return nil, fmt.Errorf("parsing flags: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findProjectFile() string {
	for _, name := range projectFiles {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name
		}
	}
	return ""
}

// loadFile decodes a TOML or YAML file over cfg, chosen by extension.
func loadFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, cfg)
	default:
		_, err := toml.DecodeFile(path, cfg)
		return err
	}
}

// loadFromEnv overrides cfg from PSCONCURRENT_* variables. NO_COLOR is
// honored as well.
func loadFromEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
		return nil
	}

	if v := os.Getenv(EnvPrefix + "MAX_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_CONCURRENCY: %w", EnvPrefix, err)
		}
		cfg.MaxConcurrency = n
	}
	str("STRATEGY", &cfg.Strategy)
	str("SHELL", &cfg.Shell)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("METRICS_ADDR", &cfg.MetricsAddr)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_STREAM", &cfg.RedisStream)
	str("SCHEDULE", &cfg.Schedule)

	if err := boolean("JSON_OUTPUT", &cfg.JSONOutput); err != nil {
		return err
	}
	if err := boolean("NO_COLOR", &cfg.NoColor); err != nil {
		return err
	}
	if os.Getenv("NO_COLOR") != "" {
		cfg.NoColor = true
	}
	return nil
}

// Flag names understood by applyFlags.
const (
	FlagMaxConcurrency = "max-concurrency"
	FlagStrategy       = "strategy"
	FlagShell          = "shell"
	FlagLogLevel       = "log-level"
	FlagLogFormat      = "log-format"
	FlagMetricsAddr    = "metrics-addr"
	FlagRedisAddr      = "redis-addr"
	FlagRedisStream    = "redis-stream"
	FlagSchedule       = "schedule"
	FlagJSON           = "json"
	FlagNoColor        = "no-color"
)

// applyFlags copies every flag the user set. Flags left at their defaults
// do not override file or environment values.
func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	set := func(name string, apply func() error) {
		if err != nil || fs.Lookup(name) == nil || !fs.Changed(name) {
			return
		}
		err = apply()
	}
	str := func(name string, dst *string) {
		set(name, func() (e error) {
			*dst, e = fs.GetString(name)
			return e
		})
	}
	boolean := func(name string, dst *bool) {
		set(name, func() (e error) {
			*dst, e = fs.GetBool(name)
			return e
		})
	}

	set(FlagMaxConcurrency, func() (e error) {
		cfg.MaxConcurrency, e = fs.GetInt(FlagMaxConcurrency)
		return e
	})
	str(FlagStrategy, &cfg.Strategy)
	str(FlagShell, &cfg.Shell)
	str(FlagLogLevel, &cfg.LogLevel)
	str(FlagLogFormat, &cfg.LogFormat)
	str(FlagMetricsAddr, &cfg.MetricsAddr)
	str(FlagRedisAddr, &cfg.RedisAddr)
	str(FlagRedisStream, &cfg.RedisStream)
	str(FlagSchedule, &cfg.Schedule)
	boolean(FlagJSON, &cfg.JSONOutput)
	boolean(FlagNoColor, &cfg.NoColor)
	return err
}

// RegisterFlags defines the flags read by Load on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.IntP(FlagMaxConcurrency, "n", d.MaxConcurrency, "maximum number of jobs running at once")
	fs.String(FlagStrategy, d.Strategy, `scheduler strategy: "dispatcher" or "elastic"`)
	fs.String(FlagShell, "", "shell used to run commands (default sh, or cmd on Windows)")
	fs.String(FlagLogLevel, d.LogLevel, "log level: debug, info, warn, error")
	fs.String(FlagLogFormat, d.LogFormat, `log format: "console" or "json"`)
	fs.String(FlagMetricsAddr, "", "serve Prometheus metrics on this address, e.g. :9090")
	fs.String(FlagRedisAddr, "", "mirror console output to the Redis server at this address")
	fs.String(FlagRedisStream, d.RedisStream, "Redis stream key for mirrored output")
	fs.String(FlagSchedule, "", "re-run the batch on this cron schedule until interrupted")
	fs.Bool(FlagJSON, false, "print results as JSON lines")
	fs.Bool(FlagNoColor, false, "disable colored output")
}
