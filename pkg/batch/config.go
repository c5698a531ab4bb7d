package batch

import (
	"go.uber.org/zap"

	"github.com/sharpjs/PSConcurrent/pkg/common/validation"
	"github.com/sharpjs/PSConcurrent/pkg/console"
	"github.com/sharpjs/PSConcurrent/pkg/metrics"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling"
)

// Config holds configuration options for a Coordinator.
type Config struct {
	// MaxConcurrency is the maximum number of jobs running at once.
	// Must be greater than 0.
	MaxConcurrency int

	// Strategy selects the scheduler implementation.
	// Default: scheduling.StrategyDispatcher
	Strategy scheduling.Strategy

	// UI receives the multiplexed console output. Required.
	UI console.UI

	// Output receives every emitted item on the goroutine running Wait.
	// When nil, items are kept and returned by Coordinator.Items.
	Output func(OutputItem)

	// Name labels log entries and metrics. Defaults to "batch".
	Name string

	// ReportJobErrors writes each job error to the worker's error line as it
	// occurs. Default: true
	ReportJobErrors *bool

	Logger  *zap.Logger
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration without a UI.
func DefaultConfig() Config {
	report := true
	return Config{
		MaxConcurrency:  1,
		Strategy:        scheduling.StrategyDispatcher,
		Name:            "batch",
		ReportJobErrors: &report,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validation.ValidatePositive(module, "max_concurrency", c.MaxConcurrency); err != nil {
		return err
	}
	if c.Strategy != "" {
		err := validation.ValidateOneOf(module, "strategy", string(c.Strategy),
			string(scheduling.StrategyDispatcher), string(scheduling.StrategyElastic))
		if err != nil {
			return err
		}
	}
	return validation.ValidateNotNil(module, "ui", c.UI)
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Strategy == "" {
		c.Strategy = defaults.Strategy
	}
	if c.Name == "" {
		c.Name = defaults.Name
	}
	if c.ReportJobErrors == nil {
		c.ReportJobErrors = defaults.ReportJobErrors
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
