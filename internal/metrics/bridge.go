// ============================================================================
// Bulu Runtime Metrics - Scheduler/GC Polling Bridge
// ============================================================================
//
// Package: internal/metrics
// File: bridge.go
// Purpose: Periodically pull Collector-facing numbers out of a
// *runtime.Runtime's monotonic counters and gauges, translating
// cumulative scheduler/GC counts into Prometheus counter increments and
// instantaneous gauges.
//
// Adapted from the donor repository's internal/controller.Controller's
// snapshotLoop, which polls internal state on a ticker and persists it;
// here the same polling cadence drives metrics updates instead of a
// snapshot file (internal/diag owns that side).
//
// ============================================================================

package metrics

import (
	"context"
	"time"

	"github.com/bulu-lang/bulu-runtime/internal/runtime"
)

// Bridge polls a Runtime on an interval and feeds its counters and gauges
// into a Collector.
type Bridge struct {
	rt        *runtime.Runtime
	collector *Collector
	interval  time.Duration

	lastSpawned   uint64
	lastCompleted uint64
	lastPanicked  uint64
	lastParked    uint64
	lastGCCycles  uint64
	lastGCFull    uint64
}

// NewBridge builds a bridge polling rt every interval.
func NewBridge(rt *runtime.Runtime, collector *Collector, interval time.Duration) *Bridge {
	return &Bridge{rt: rt, collector: collector, interval: interval}
}

// Run polls until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.tick()
		}
	}
}

func (b *Bridge) tick() {
	stats := b.rt.Scheduler.Stats()
	for ; b.lastSpawned < stats.Total; b.lastSpawned++ {
		b.collector.RecordSpawn()
	}
	for ; b.lastCompleted < stats.Completed; b.lastCompleted++ {
		b.collector.RecordCompleted(0)
	}
	for ; b.lastPanicked < stats.Panicked; b.lastPanicked++ {
		b.collector.RecordPanicked()
	}
	for ; b.lastParked < stats.ParkedTotal; b.lastParked++ {
		b.collector.RecordParked()
	}
	b.collector.UpdateSchedulerStats(stats.Active, stats.Parked, stats.Workers)

	gcStats := b.rt.GC.Stats()
	for ; b.lastGCCycles < gcStats.TotalCollections; b.lastGCCycles++ {
		full := b.lastGCFull < gcStats.Full
		if full {
			b.lastGCFull++
		}
		b.collector.RecordGC(full, gcStats.AvgPauseUS/1e6)
	}
	b.collector.UpdateHeapStats(gcStats.HeapSize, b.rt.Memory.Stats().HeapTotal)
}
