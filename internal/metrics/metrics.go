// ============================================================================
// Bulu Runtime Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose scheduler, channel, and GC metrics for
// Prometheus scraping.
//
// Adapted from the donor repository's internal/metrics.Collector: the
// job-queue counters/gauges/histogram there (jobs_enqueued_total,
// job_latency_seconds, jobs_pending, ...) are replaced one-for-one with
// the runtime's own domain counters (tasks spawned/completed/panicked,
// task step latency, active task and parked-task gauges, GC pause time
// histogram and heap gauges), keeping the donor's register-once
// constructor, atomic prometheus.Counter/Gauge/Histogram fields, and
// promhttp.Handler()-backed StartServer.
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bulu-lang/bulu-runtime/internal/runtime"
)

// Collector collects Prometheus metrics for the runtime.
type Collector struct {
	tasksSpawned   prometheus.Counter
	tasksCompleted prometheus.Counter
	tasksPanicked  prometheus.Counter
	tasksParked    prometheus.Counter

	taskStepLatency prometheus.Histogram

	activeTasks prometheus.Gauge
	parkedTasks prometheus.Gauge
	workerCount prometheus.Gauge

	channelSends    prometheus.Counter
	channelReceives prometheus.Counter
	channelBlocked  prometheus.Counter

	gcCollections  prometheus.Counter
	gcFullCollect  prometheus.Counter
	gcPauseSeconds prometheus.Histogram
	heapUsedBytes  prometheus.Gauge
	heapTotalBytes prometheus.Gauge
}

// NewCollector creates and registers a new metrics collector.
func NewCollector() *Collector {
	c := &Collector{
		tasksSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bulu_tasks_spawned_total",
			Help: "Total number of tasks spawned on the scheduler",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bulu_tasks_completed_total",
			Help: "Total number of tasks that ran to completion",
		}),
		tasksPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bulu_tasks_panicked_total",
			Help: "Total number of tasks that panicked",
		}),
		tasksParked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bulu_tasks_parked_total",
			Help: "Total number of park events observed",
		}),
		taskStepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bulu_task_step_seconds",
			Help:    "Duration of a single task execution step, from dequeue to suspension or completion",
			Buckets: prometheus.DefBuckets,
		}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bulu_tasks_active",
			Help: "Current number of runnable or running tasks",
		}),
		parkedTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bulu_tasks_parked",
			Help: "Current number of parked tasks awaiting I/O or a syscall result",
		}),
		workerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bulu_scheduler_workers",
			Help: "Configured number of scheduler worker threads",
		}),
		channelSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bulu_channel_sends_total",
			Help: "Total number of values successfully sent on any channel",
		}),
		channelReceives: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bulu_channel_receives_total",
			Help: "Total number of values successfully received from any channel",
		}),
		channelBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bulu_channel_blocked_total",
			Help: "Total number of send/receive attempts that had to block",
		}),
		gcCollections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bulu_gc_collections_total",
			Help: "Total number of garbage collection cycles (young + full)",
		}),
		gcFullCollect: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bulu_gc_full_collections_total",
			Help: "Total number of full (young + old) garbage collection cycles",
		}),
		gcPauseSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bulu_gc_pause_seconds",
			Help:    "Garbage collection pause duration",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		heapUsedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bulu_heap_used_bytes",
			Help: "Bytes currently allocated across both generations",
		}),
		heapTotalBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bulu_heap_total_bytes",
			Help: "Configured maximum heap size in bytes",
		}),
	}

	prometheus.MustRegister(
		c.tasksSpawned, c.tasksCompleted, c.tasksPanicked, c.tasksParked,
		c.taskStepLatency, c.activeTasks, c.parkedTasks, c.workerCount,
		c.channelSends, c.channelReceives, c.channelBlocked,
		c.gcCollections, c.gcFullCollect, c.gcPauseSeconds,
		c.heapUsedBytes, c.heapTotalBytes,
	)

	return c
}

// RecordSpawn records a task spawn.
func (c *Collector) RecordSpawn() { c.tasksSpawned.Inc() }

// RecordCompleted records a task running to completion, with its total
// step latency.
func (c *Collector) RecordCompleted(stepSeconds float64) {
	c.tasksCompleted.Inc()
	c.taskStepLatency.Observe(stepSeconds)
}

// RecordPanicked records a task panic.
func (c *Collector) RecordPanicked() { c.tasksPanicked.Inc() }

// RecordParked records a park event.
func (c *Collector) RecordParked() { c.tasksParked.Inc() }

// UpdateSchedulerStats updates the active/parked/worker gauges from a
// scheduler snapshot.
func (c *Collector) UpdateSchedulerStats(active, parked uint64, workers int) {
	c.activeTasks.Set(float64(active))
	c.parkedTasks.Set(float64(parked))
	c.workerCount.Set(float64(workers))
}

// RecordChannelSend records a completed channel send.
func (c *Collector) RecordChannelSend() { c.channelSends.Inc() }

// RecordChannelReceive records a completed channel receive.
func (c *Collector) RecordChannelReceive() { c.channelReceives.Inc() }

// RecordChannelBlocked records a send or receive that had to block.
func (c *Collector) RecordChannelBlocked() { c.channelBlocked.Inc() }

// ObserveChannelEvent adapts a runtime.Channel's observer callback to the
// channel counters above; pass it to Channel.SetObserver to give a
// channel real metrics instead of a silently-registered-but-unfed
// counter.
func (c *Collector) ObserveChannelEvent(ev runtime.ChannelEvent) {
	switch ev {
	case runtime.ChannelEventSend:
		c.RecordChannelSend()
	case runtime.ChannelEventReceive:
		c.RecordChannelReceive()
	case runtime.ChannelEventBlocked:
		c.RecordChannelBlocked()
	}
}

// RecordGC records one completed collection cycle.
func (c *Collector) RecordGC(full bool, pauseSeconds float64) {
	c.gcCollections.Inc()
	if full {
		c.gcFullCollect.Inc()
	}
	c.gcPauseSeconds.Observe(pauseSeconds)
}

// UpdateHeapStats updates the heap usage gauges.
func (c *Collector) UpdateHeapStats(used, total uint64) {
	c.heapUsedBytes.Set(float64(used))
	c.heapTotalBytes.Set(float64(total))
}

// StartServer starts the Prometheus metrics HTTP server on port,
// exposing /metrics via promhttp.Handler.
func StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
