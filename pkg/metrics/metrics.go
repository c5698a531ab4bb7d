package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for psconcurrent components.
//
// A nil *Registry is valid and records nothing, so components can hold one
// unconditionally.
type Registry struct {
	// Scheduling Metrics
	JobsSubmitted   *prometheus.CounterVec
	JobsStarted     *prometheus.CounterVec
	JobsCompleted   *prometheus.CounterVec
	JobsFailed      *prometheus.CounterVec
	JobsSkipped     *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	InFlight        *prometheus.GaugeVec
	Queued          *prometheus.GaugeVec
	DispatcherSpawn *prometheus.CounterVec

	// Event Loop Metrics
	LoopInvocations *prometheus.CounterVec
	LoopQueueDepth  *prometheus.GaugeVec

	// Console Metrics
	ConsoleWrites      *prometheus.CounterVec
	ConsoleLineBreaks  *prometheus.CounterVec
	ConsoleMirrorFails *prometheus.CounterVec

	// Batch Metrics
	Batches       *prometheus.CounterVec
	BatchDuration *prometheus.HistogramVec
	OutputItems   *prometheus.CounterVec
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry bound to prometheus.DefaultRegisterer, creating
// it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// New creates a registry from a Config. It returns nil when metrics are disabled.
func New(config Config) *Registry {
	if !config.Enabled {
		return nil
	}
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if reg == prometheus.DefaultRegisterer && config.namespace() == DefaultNamespace && len(config.Labels) == 0 {
		return Default()
	}
	return newRegistry(reg, config.namespace(), config.Labels)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return newRegistry(reg, DefaultNamespace, nil)
}

func newRegistry(reg prometheus.Registerer, ns string, labels prometheus.Labels) *Registry {
	factory := promauto.With(reg)

	counter := func(subsystem, name, help string, labelNames ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, labelNames)
	}
	gauge := func(subsystem, name, help string, labelNames ...string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, labelNames)
	}
	histogram := func(subsystem, name, help string, labelNames ...string) *prometheus.HistogramVec {
		return factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, labelNames)
	}

	return &Registry{
		JobsSubmitted:   counter("scheduler", "jobs_submitted_total", "Total number of jobs submitted", "scheduler_name"),
		JobsStarted:     counter("scheduler", "jobs_started_total", "Total number of jobs started", "scheduler_name"),
		JobsCompleted:   counter("scheduler", "jobs_completed_total", "Total number of jobs completed successfully", "scheduler_name"),
		JobsFailed:      counter("scheduler", "jobs_failed_total", "Total number of jobs that returned an error or panicked", "scheduler_name"),
		JobsSkipped:     counter("scheduler", "jobs_skipped_total", "Total number of queued jobs skipped after cancellation", "scheduler_name"),
		JobDuration:     histogram("scheduler", "job_duration_seconds", "Time spent executing jobs", "scheduler_name"),
		InFlight:        gauge("scheduler", "in_flight", "Number of jobs currently running", "scheduler_name"),
		Queued:          gauge("scheduler", "queued", "Number of jobs waiting for admission", "scheduler_name"),
		DispatcherSpawn: counter("scheduler", "dispatchers_spawned_total", "Total number of dispatch workers started", "scheduler_name"),

		LoopInvocations: counter("eventloop", "invocations_total", "Total number of callbacks handed to the event loop", "mode"),
		LoopQueueDepth:  gauge("eventloop", "queue_depth", "Number of callbacks waiting for the loop owner", "loop_name"),

		ConsoleWrites:      counter("console", "writes_total", "Total number of multiplexed console operations", "kind"),
		ConsoleLineBreaks:  counter("console", "forced_line_breaks_total", "Total number of line breaks inserted between workers", "console_name"),
		ConsoleMirrorFails: counter("console", "mirror_failures_total", "Total number of lines the mirror failed to publish", "stream"),

		Batches:       counter("batch", "batches_total", "Total number of completed batches by outcome", "outcome"),
		BatchDuration: histogram("batch", "duration_seconds", "Wall time of completed batches", "outcome"),
		OutputItems:   counter("batch", "output_items_total", "Total number of output items delivered to the host", "batch_name"),
	}
}

// JobStarted records a job leaving the queue.
func (r *Registry) JobStarted(scheduler string) {
	if r == nil {
		return
	}
	r.JobsStarted.WithLabelValues(scheduler).Inc()
}

// JobFinished records a finished job and its duration.
func (r *Registry) JobFinished(scheduler string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.JobDuration.WithLabelValues(scheduler).Observe(d.Seconds())
	if err != nil {
		r.JobsFailed.WithLabelValues(scheduler).Inc()
	} else {
		r.JobsCompleted.WithLabelValues(scheduler).Inc()
	}
}

// JobSubmitted records an accepted submission.
func (r *Registry) JobSubmitted(scheduler string) {
	if r == nil {
		return
	}
	r.JobsSubmitted.WithLabelValues(scheduler).Inc()
}

// JobSkipped records a queued job dropped because of cancellation or removal.
func (r *Registry) JobSkipped(scheduler string) {
	if r == nil {
		return
	}
	r.JobsSkipped.WithLabelValues(scheduler).Inc()
}

// SetInFlight publishes the current number of running jobs.
func (r *Registry) SetInFlight(scheduler string, n int) {
	if r == nil {
		return
	}
	r.InFlight.WithLabelValues(scheduler).Set(float64(n))
}

// SetQueued publishes the current backlog length.
func (r *Registry) SetQueued(scheduler string, n int) {
	if r == nil {
		return
	}
	r.Queued.WithLabelValues(scheduler).Set(float64(n))
}

// DispatcherSpawned records a new dispatch worker.
func (r *Registry) DispatcherSpawned(scheduler string) {
	if r == nil {
		return
	}
	r.DispatcherSpawn.WithLabelValues(scheduler).Inc()
}

// LoopInvoked records a callback handed to the event loop. mode is "sync" or "post".
func (r *Registry) LoopInvoked(mode string) {
	if r == nil {
		return
	}
	r.LoopInvocations.WithLabelValues(mode).Inc()
}

// SetLoopQueueDepth publishes the number of callbacks waiting for the owner.
func (r *Registry) SetLoopQueueDepth(loop string, n int) {
	if r == nil {
		return
	}
	r.LoopQueueDepth.WithLabelValues(loop).Set(float64(n))
}

// ConsoleWrite records a multiplexed console operation of the given kind.
func (r *Registry) ConsoleWrite(kind string) {
	if r == nil {
		return
	}
	r.ConsoleWrites.WithLabelValues(kind).Inc()
}

// ConsoleLineBreak records a line break forced between two workers.
func (r *Registry) ConsoleLineBreak(console string) {
	if r == nil {
		return
	}
	r.ConsoleLineBreaks.WithLabelValues(console).Inc()
}

// MirrorFailed records a line the console mirror could not publish.
func (r *Registry) MirrorFailed(stream string) {
	if r == nil {
		return
	}
	r.ConsoleMirrorFails.WithLabelValues(stream).Inc()
}

// BatchFinished records a completed batch. outcome is "success", "failed" or "canceled".
func (r *Registry) BatchFinished(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.Batches.WithLabelValues(outcome).Inc()
	r.BatchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// OutputDelivered records an output item handed to the host.
func (r *Registry) OutputDelivered(batch string) {
	if r == nil {
		return
	}
	r.OutputItems.WithLabelValues(batch).Inc()
}
