package runtime

// ============================================================================
// Garbage Collector Test File
// Purpose: Verify the mark/sweep/promote pipeline and the GC reclamation
// scenario of spec.md §8.
// ============================================================================

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallGCConfig() GCConfig {
	cfg := DefaultGCConfig()
	cfg.MaxHeapSize = 1 << 20 // 1 MiB; larger allocation runs rely on Allocate's collect-and-retry
	cfg.ConcurrentGC = false
	return cfg
}

// TestGCReclamationScenario mirrors spec.md §8 scenario 6: with an empty
// root set, allocate 10,000 objects of 128 bytes, force collect.
func TestGCReclamationScenario(t *testing.T) {
	gc := NewGarbageCollector(smallGCConfig(), testLogger())

	const n = 10_000
	const size = 128
	for i := 0; i < n; i++ {
		_, err := gc.Allocate(size, 1)
		require.NoError(t, err)
	}

	gc.Collect()
	stats := gc.Stats()

	assert.GreaterOrEqual(t, stats.BytesCollected, uint64(n*size))
	assert.Equal(t, uint64(0), stats.HeapSize)
}

// TestGCKeepsReachableObjects verifies objects reachable from the root
// set survive a collection while unreachable ones are swept.
func TestGCKeepsReachableObjects(t *testing.T) {
	gc := NewGarbageCollector(smallGCConfig(), testLogger())

	live, err := gc.Allocate(64, 1)
	require.NoError(t, err)
	_, err = gc.Allocate(64, 1) // unreachable
	require.NoError(t, err)

	gc.SetRootSet(fixedRootSet{live})
	gc.Collect()

	_, ok := gc.GetObject(live)
	assert.True(t, ok)

	stats := gc.Stats()
	assert.Equal(t, uint64(64), stats.HeapSize)
}

// TestGCPromotionAfterThreshold verifies a reachable young object is
// promoted to the old generation by the first collection after it has
// survived promotion_threshold collections, fixing the address-keyed bug described in spec.md §9.
func TestGCPromotionAfterThreshold(t *testing.T) {
	cfg := smallGCConfig()
	cfg.PromotionThreshold = 2
	gc := NewGarbageCollector(cfg, testLogger())

	id, err := gc.Allocate(64, 1)
	require.NoError(t, err)
	gc.SetRootSet(fixedRootSet{id})

	gc.Collect() // age 0 -> 1
	obj, ok := gc.young.get(id)
	require.True(t, ok)
	assert.Equal(t, uint32(1), obj.Header.Age)
	assert.Equal(t, 0, obj.Header.Generation)

	gc.Collect() // age 1 -> 2
	gc.Collect() // age 2 >= threshold -> promoted
	_, stillYoung := gc.young.get(id)
	assert.False(t, stillYoung)

	obj, ok = gc.old.get(id)
	require.True(t, ok)
	assert.Equal(t, 1, obj.Header.Generation)
}

func TestGCAllocateOOM(t *testing.T) {
	cfg := smallGCConfig()
	cfg.MaxHeapSize = 64
	cfg.YoungGenRatio = 0.5
	gc := NewGarbageCollector(cfg, testLogger())

	_, err := gc.Allocate(1024, 1)
	assert.ErrorIs(t, err, ErrOOM)
}

func TestGCStatsTrackCollectionCounts(t *testing.T) {
	gc := NewGarbageCollector(smallGCConfig(), testLogger())
	_, err := gc.Allocate(32, 1)
	require.NoError(t, err)

	gc.Collect()
	gc.Collect()

	stats := gc.Stats()
	assert.Equal(t, uint64(2), stats.TotalCollections)
}

type fixedRootSet struct {
	id ObjectID
}

func (f fixedRootSet) Roots() []ObjectID { return []ObjectID{f.id} }
