package metrics

// ============================================================================
// Metrics Collector/Bridge Test File
// Purpose: Verify counters and gauges update correctly, and that Bridge
// translates cumulative scheduler/GC stats into monotonic increments.
//
// NewCollector registers against the default Prometheus registry via
// prometheus.MustRegister, which panics on a second registration of the
// same metric name. A single shared Collector, built once via
// TestMain, is exercised across every test in this file instead of one
// per test, matching the donor metrics_test.go's single-registry
// constraint.
// ============================================================================

import (
	"context"
	"testing"
	"time"

	"github.com/bulu-lang/bulu-runtime/internal/runtime"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sharedCollector *Collector

func TestMain(m *testing.M) {
	sharedCollector = NewCollector()
	m.Run()
}

func TestCollectorRecordSpawnCompletedPanicked(t *testing.T) {
	c := sharedCollector
	before := testutil.ToFloat64(c.tasksSpawned)
	c.RecordSpawn()
	assert.Equal(t, before+1, testutil.ToFloat64(c.tasksSpawned))

	beforeCompleted := testutil.ToFloat64(c.tasksCompleted)
	c.RecordCompleted(0.01)
	assert.Equal(t, beforeCompleted+1, testutil.ToFloat64(c.tasksCompleted))

	beforePanicked := testutil.ToFloat64(c.tasksPanicked)
	c.RecordPanicked()
	assert.Equal(t, beforePanicked+1, testutil.ToFloat64(c.tasksPanicked))
}

func TestCollectorUpdateSchedulerStats(t *testing.T) {
	c := sharedCollector
	c.UpdateSchedulerStats(7, 3, 4)
	assert.Equal(t, float64(7), testutil.ToFloat64(c.activeTasks))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.parkedTasks))
	assert.Equal(t, float64(4), testutil.ToFloat64(c.workerCount))
}

func TestCollectorChannelCounters(t *testing.T) {
	c := sharedCollector
	beforeSend := testutil.ToFloat64(c.channelSends)
	beforeRecv := testutil.ToFloat64(c.channelReceives)
	beforeBlocked := testutil.ToFloat64(c.channelBlocked)

	c.RecordChannelSend()
	c.RecordChannelReceive()
	c.RecordChannelBlocked()

	assert.Equal(t, beforeSend+1, testutil.ToFloat64(c.channelSends))
	assert.Equal(t, beforeRecv+1, testutil.ToFloat64(c.channelReceives))
	assert.Equal(t, beforeBlocked+1, testutil.ToFloat64(c.channelBlocked))
}

func TestCollectorRecordGCDistinguishesFullFromYoung(t *testing.T) {
	c := sharedCollector
	beforeTotal := testutil.ToFloat64(c.gcCollections)
	beforeFull := testutil.ToFloat64(c.gcFullCollect)

	c.RecordGC(false, 0.001)
	assert.Equal(t, beforeTotal+1, testutil.ToFloat64(c.gcCollections))
	assert.Equal(t, beforeFull, testutil.ToFloat64(c.gcFullCollect))

	c.RecordGC(true, 0.002)
	assert.Equal(t, beforeTotal+2, testutil.ToFloat64(c.gcCollections))
	assert.Equal(t, beforeFull+1, testutil.ToFloat64(c.gcFullCollect))
}

func TestCollectorUpdateHeapStats(t *testing.T) {
	c := sharedCollector
	c.UpdateHeapStats(4096, 1<<20)
	assert.Equal(t, float64(4096), testutil.ToFloat64(c.heapUsedBytes))
	assert.Equal(t, float64(1<<20), testutil.ToFloat64(c.heapTotalBytes))
}

func TestCollectorObserveChannelEventDrivesCounters(t *testing.T) {
	c := sharedCollector
	beforeSend := testutil.ToFloat64(c.channelSends)
	beforeRecv := testutil.ToFloat64(c.channelReceives)
	beforeBlocked := testutil.ToFloat64(c.channelBlocked)

	ch := runtime.NewChannel[int](1)
	ch.SetObserver(c.ObserveChannelEvent)

	require.NoError(t, ch.Send(1))
	_, err := ch.Receive()
	require.NoError(t, err)

	assert.Equal(t, beforeSend+1, testutil.ToFloat64(c.channelSends))
	assert.Equal(t, beforeRecv+1, testutil.ToFloat64(c.channelReceives))
	assert.Equal(t, beforeBlocked, testutil.ToFloat64(c.channelBlocked))

	require.NoError(t, ch.Send(2)) // fills capacity-1 buffer
	done := make(chan struct{})
	go func() {
		require.NoError(t, ch.Send(3)) // blocks until the receive below drains one slot
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	_, err = ch.Receive()
	require.NoError(t, err)
	<-done

	assert.Greater(t, testutil.ToFloat64(c.channelBlocked), beforeBlocked)
}

func TestBridgeTickTranslatesCumulativeStatsToDeltas(t *testing.T) {
	cfg := runtime.DefaultConfig()
	cfg.Workers = 1
	cfg.GC.ConcurrentGC = false
	rt, err := runtime.New(cfg)
	require.NoError(t, err)
	rt.Start()
	defer rt.Shutdown()

	rt.Scheduler.Spawn(func(ctx *runtime.Context) runtime.Outcome { return runtime.Done(nil) })
	require.True(t, rt.WaitAll(5*time.Second))

	c := sharedCollector
	beforeSpawned := testutil.ToFloat64(c.tasksSpawned)
	beforeCompleted := testutil.ToFloat64(c.tasksCompleted)

	bridge := NewBridge(rt, c, time.Hour)
	bridge.tick()

	assert.Greater(t, testutil.ToFloat64(c.tasksSpawned), beforeSpawned)
	assert.Greater(t, testutil.ToFloat64(c.tasksCompleted), beforeCompleted)
}

func TestBridgeRunStopsOnContextCancel(t *testing.T) {
	cfg := runtime.DefaultConfig()
	cfg.Workers = 1
	cfg.GC.ConcurrentGC = false
	rt, err := runtime.New(cfg)
	require.NoError(t, err)
	rt.Start()
	defer rt.Shutdown()

	bridge := NewBridge(rt, sharedCollector, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		bridge.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge.Run did not return after context cancellation")
	}
}
