package runtime

// ============================================================================
// Runtime Singleton Test File
// Purpose: Verify explicit construction/start/shutdown wiring and the
// LANG_GC_* environment-variable overlay of spec.md §6.
// ============================================================================

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuntimeWiresEverySubsystem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 2
	rt, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, rt.Scheduler)
	require.NotNil(t, rt.Poller)
	require.NotNil(t, rt.Syscalls)
	require.NotNil(t, rt.GC)
	require.NotNil(t, rt.Memory)
	require.NotNil(t, rt.Safety)
}

func TestRuntimeStartSpawnWaitShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.GC.ConcurrentGC = false
	rt, err := New(cfg)
	require.NoError(t, err)
	rt.Start()

	rt.Scheduler.Spawn(func(ctx *Context) Outcome { return Done(nil) })

	ok := rt.WaitAll(5 * time.Second)
	assert.True(t, ok)

	rt.Shutdown()
}

func TestRuntimeSnapshotReflectsSchedulerAndMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.GC.ConcurrentGC = false
	rt, err := New(cfg)
	require.NoError(t, err)
	rt.Start()
	defer rt.Shutdown()

	rt.Scheduler.Spawn(func(ctx *Context) Outcome { return Done(nil) })
	require.True(t, rt.WaitAll(5*time.Second))

	snap := rt.Snapshot(time.Now())
	assert.Equal(t, uint64(1), snap.Scheduler.Completed)
	assert.Equal(t, cfg.GC.MaxHeapSize, snap.Memory.HeapTotal)
}

func TestParseByteSize(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1024", 1024},
		{"1K", 1024},
		{"2M", 2 * 1024 * 1024},
		{"1G", 1024 * 1024 * 1024},
		{"1g", 1024 * 1024 * 1024},
	}
	for _, c := range cases {
		got, err := ParseByteSize(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := ParseByteSize("")
	assert.Error(t, err)
}

func TestConfigFromEnvOverlaysGCSettings(t *testing.T) {
	t.Setenv("LANG_GC_HEAP_SIZE", "2M")
	t.Setenv("LANG_GC_TARGET", "50")
	t.Setenv("LANG_GC_THREADS", "3")
	t.Setenv("LANG_GC_DEBUG", "true")

	cfg := ConfigFromEnv()
	assert.Equal(t, uint64(2*1024*1024), cfg.GC.MaxHeapSize)
	assert.Equal(t, 50, cfg.GC.TargetHeapUsage)
	assert.Equal(t, 3, cfg.GC.GCThreads)
	assert.True(t, cfg.GC.Debug)
}

func TestConfigFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("LANG_GC_TARGET", "not-a-number")
	cfg := ConfigFromEnv()
	assert.Equal(t, DefaultGCConfig().TargetHeapUsage, cfg.GC.TargetHeapUsage)
}
