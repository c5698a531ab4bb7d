package eventloop

import (
	"go.uber.org/zap"

	"github.com/sharpjs/PSConcurrent/pkg/metrics"
)

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger that receives recovered callback panics.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.log = logger
		}
	}
}

// WithMetrics records invocations and queue depth.
func WithMetrics(m *metrics.Registry) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// WithName labels log entries and metrics. Defaults to "loop".
func WithName(name string) Option {
	return func(l *Loop) {
		if name != "" {
			l.name = name
		}
	}
}
