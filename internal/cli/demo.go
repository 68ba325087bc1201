// ============================================================================
// Bulu Runtime CLI - Demo Workload
// ============================================================================
//
// Package: internal/cli
// File: demo.go
// Purpose: A small producer/consumer workload the `run` command executes
// against a freshly started Runtime, exercising Spawn, channels, and a
// forced GC cycle end-to-end — the same role the donor's
// `cmd/demo/main.go` plays (spawn workers, push jobs through a channel,
// print a final snapshot) adapted from job dispatch to the runtime's own
// task/channel/GC primitives.
//
// ============================================================================

package cli

import (
	"log/slog"
	"time"

	"github.com/bulu-lang/bulu-runtime/internal/metrics"
	"github.com/bulu-lang/bulu-runtime/internal/runtime"
)

const demoTypeID uint32 = 1

// runDemo spawns a producer and several consumers wired through a
// bounded channel, waits for them to finish, then requests a collection
// so the `run` command's first logged snapshot reflects real activity.
// collector may be nil, in which case channel events go unobserved.
//
// The channel is sized to hold every item the producer will ever send
// (items, not some smaller constant): with the single-core default
// (Workers == max(NumCPU(), 1) == 1), a cap smaller than items would let
// the producer block on a full buffer with no other worker free to run a
// consumer and drain it — blocking Send blocks the worker goroutine
// outright, so that would deadlock the demo rather than just slow it
// down. For the same reason the consumers are spawned only after the
// producer has finished: a consumer that ran first would hold its worker
// in Receive, and consumers holding every worker would leave the
// producer unrun.
func runDemo(rt *runtime.Runtime, log *slog.Logger, collector *metrics.Collector) {
	rt.Memory.RegisterTypeLayout(demoTypeID, runtime.TypeLayout{
		Size:               32,
		Alignment:          8,
		ContainsReferences: false,
		Strategy:           runtime.Heap,
	})

	const items = 16
	const consumers = 4

	ch := runtime.NewChannel[int](items)
	if collector != nil {
		ch.SetObserver(collector.ObserveChannelEvent)
	}
	done := make(chan struct{}, consumers)

	producer := rt.Scheduler.Spawn(func(ctx *runtime.Context) runtime.Outcome {
		for i := 0; i < items; i++ {
			if err := ch.Send(i); err != nil {
				return runtime.Failed(err)
			}
			if _, err := rt.Memory.Allocate(demoTypeID, runtime.ChannelSend); err != nil {
				log.Warn("demo allocate failed", "err", err)
			}
		}
		return runtime.Done(ch.Close())
	})
	for st := producer.State(); st != runtime.TaskCompleted && st != runtime.TaskPanicked; st = producer.State() {
		time.Sleep(time.Millisecond)
	}

	for c := 0; c < consumers; c++ {
		rt.Scheduler.Spawn(func(ctx *runtime.Context) runtime.Outcome {
			for {
				v, err := ch.Receive()
				if err == runtime.ErrClosed {
					done <- struct{}{}
					return runtime.Done(nil)
				}
				if err != nil {
					return runtime.Failed(err)
				}
				_ = v
			}
		})
	}

	for c := 0; c < consumers; c++ {
		<-done
	}

	rt.GC.Collect()

	snap := rt.Snapshot(time.Now())
	log.Info("demo workload complete",
		"tasks_completed", snap.Scheduler.Completed,
		"heap_used", snap.Memory.HeapUsed,
		"gc_collections", snap.Memory.GC.TotalCollections,
	)
}
