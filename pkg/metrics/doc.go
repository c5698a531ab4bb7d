// Package metrics provides Prometheus instrumentation for psconcurrent components.
//
// Every scheduler, the event loop, the console multiplexer and the batch
// coordinator accept an optional *Registry. A nil registry disables
// collection without any branching at the call sites.
//
// # Quick Start
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistry(reg)
//
//	c, _ := batch.New(batch.Config{MaxConcurrency: 4, Metrics: m})
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Available Metrics
//
//   - psconcurrent_scheduler_jobs_submitted_total
//   - psconcurrent_scheduler_jobs_started_total
//   - psconcurrent_scheduler_jobs_completed_total
//   - psconcurrent_scheduler_jobs_failed_total
//   - psconcurrent_scheduler_jobs_skipped_total
//   - psconcurrent_scheduler_job_duration_seconds
//   - psconcurrent_scheduler_in_flight
//   - psconcurrent_scheduler_queued
//   - psconcurrent_scheduler_dispatchers_spawned_total
//   - psconcurrent_eventloop_invocations_total
//   - psconcurrent_eventloop_queue_depth
//   - psconcurrent_console_writes_total
//   - psconcurrent_console_forced_line_breaks_total
//   - psconcurrent_console_mirror_failures_total
//   - psconcurrent_batch_batches_total
//   - psconcurrent_batch_duration_seconds
//   - psconcurrent_batch_output_items_total
package metrics
