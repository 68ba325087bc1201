// ============================================================================
// Bulu Runtime GC - Tri-Color Generational Collector
// ============================================================================
//
// Package: internal/runtime
// File: gc.go
// Purpose: spec.md §4.5. Mark-and-sweep collection over young/old
// generations, with age-based promotion and an optional background
// collection thread.
//
// Grounded on original_source/src/runtime/gc.rs's GarbageCollector, mark_
// from_roots/sweep_generation/promote_survivors pipeline, translated from
// Arc<RwLock<_>> + a background thread rebuilding a "temp_gc" clone each
// tick into a single long-lived struct with its own Start/Stop, in the
// donor repository's style of internal/controller.Controller's loop
// (select on a stop channel + ticker, spawned once from Start).
//
// Two bugs present in the original are fixed here rather than carried
// forward, per spec.md §9's Open Questions:
//   - promote_survivors' final "age remaining young objects" step keyed
//     off the object's memory address (`object as *const HeapObject as
//     usize`) instead of its ObjectID, so ages were bumped for the wrong
//     keys whenever the two diverged. Here aging iterates the generation's
//     own id->object map directly.
//   - get_object returned None on every path regardless of whether the id
//     existed. generation.get (generation.go) returns the real object.
//
// ============================================================================

package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bulu-lang/bulu-runtime/internal/tracelog"
)

// RootSet supplies the GC's starting points for reachability marking.
// The embedding interpreter implements this over its live call stack and
// global bindings (spec.md §4.5 "root set").
type RootSet interface {
	Roots() []ObjectID
}

// EmptyRootSet is the collector's default before set_root_set-equivalent
// wiring happens; collecting against it reclaims everything.
type EmptyRootSet struct{}

func (EmptyRootSet) Roots() []ObjectID { return nil }

// GarbageCollector implements spec.md §4.5's allocate/collect/stats
// contract.
type GarbageCollector struct {
	config GCConfig

	young *generation
	old   *generation

	nextObjectID atomic.Uint64

	statsMu sync.RWMutex
	stats   GCStats

	rootSetMu sync.RWMutex
	rootSet   RootSet

	running              atomic.Bool
	collectionRequested  atomic.Bool
	stopCh               chan struct{}
	wg                   sync.WaitGroup

	log *slog.Logger

	trace atomic.Pointer[tracelog.Log]
}

// SetTraceLog installs a trace log that each completed collection cycle
// is appended to (event type GC, detail naming the kind and duration),
// per SPEC_FULL.md's tracelog supplement. A nil logger (the
// default) makes every trace call a no-op.
func (gc *GarbageCollector) SetTraceLog(tl *tracelog.Log) { gc.trace.Store(tl) }

// NewGarbageCollector constructs a collector with the given configuration.
// The young/old generation sizes are split from MaxHeapSize by
// YoungGenRatio, per spec.md §4.5.
func NewGarbageCollector(config GCConfig, log *slog.Logger) *GarbageCollector {
	youngSize := uint64(float64(config.MaxHeapSize) * config.YoungGenRatio)
	oldSize := config.MaxHeapSize - youngSize

	gc := &GarbageCollector{
		config:  config,
		young:   newGeneration(youngSize),
		old:     newGeneration(oldSize),
		rootSet: EmptyRootSet{},
		stopCh:  make(chan struct{}),
		log:     log,
	}
	gc.nextObjectID.Store(1)
	return gc
}

// SetRootSet installs the embedding runtime's live root provider.
func (gc *GarbageCollector) SetRootSet(rs RootSet) {
	gc.rootSetMu.Lock()
	gc.rootSet = rs
	gc.rootSetMu.Unlock()
}

func (gc *GarbageCollector) roots() []ObjectID {
	gc.rootSetMu.RLock()
	defer gc.rootSetMu.RUnlock()
	return gc.rootSet.Roots()
}

// Start launches the background collection thread if ConcurrentGC is
// enabled; it is a no-op otherwise, matching spec.md's "collection may
// also be driven synchronously by the embedder" alternative.
func (gc *GarbageCollector) Start() {
	if !gc.config.ConcurrentGC {
		return
	}
	if !gc.running.CompareAndSwap(false, true) {
		return
	}
	gc.wg.Add(1)
	go gc.loop()
}

// Stop halts the background collection thread, if running.
func (gc *GarbageCollector) Stop() {
	if !gc.running.CompareAndSwap(true, false) {
		return
	}
	close(gc.stopCh)
	gc.wg.Wait()
}

func (gc *GarbageCollector) loop() {
	defer gc.wg.Done()
	ticker := time.NewTicker(time.Millisecond * time.Duration(max(gc.config.MaxPauseTimeMS, 1)))
	defer ticker.Stop()
	for {
		select {
		case <-gc.stopCh:
			return
		case <-ticker.C:
		}
		if gc.collectionRequested.CompareAndSwap(true, false) {
			gc.Collect()
			continue
		}
		if gc.young.usageRatio() > float64(gc.config.TargetHeapUsage)/100.0 {
			gc.Collect()
		}
	}
}

// Allocate reserves a new object, trying the young generation first, then
// old, then triggering a synchronous collection and retrying once more
// before reporting ErrOOM (spec.md §4.5 "allocate").
func (gc *GarbageCollector) Allocate(size uint64, typeID uint32) (ObjectID, error) {
	id := ObjectID(gc.nextObjectID.Add(1))

	if gc.tryAllocate(gc.young, id, size, typeID, 0) {
		return id, nil
	}
	if gc.tryAllocate(gc.old, id, size, typeID, 1) {
		return id, nil
	}

	gc.Collect()

	if gc.tryAllocate(gc.young, id, size, typeID, 0) {
		return id, nil
	}
	if gc.tryAllocate(gc.old, id, size, typeID, 1) {
		return id, nil
	}
	return 0, ErrOOM
}

func (gc *GarbageCollector) tryAllocate(gen *generation, id ObjectID, size uint64, typeID uint32, genNum int) bool {
	obj := &HeapObject{
		Header: ObjectHeader{
			Size:        size,
			TypeID:      typeID,
			Generation:  genNum,
			Color:       White,
			AllocatedAt: time.Now(),
		},
		Data: make([]byte, size),
	}
	if !gen.allocate(id, obj) {
		return false
	}
	gc.statsMu.Lock()
	gc.stats.BytesAllocated += size
	gc.stats.HeapSize += size
	gc.statsMu.Unlock()
	return true
}

// GetObject returns object id's live header/data, if it is still resident
// in either generation.
func (gc *GarbageCollector) GetObject(id ObjectID) (*HeapObject, bool) {
	if obj, ok := gc.young.get(id); ok {
		return obj, true
	}
	return gc.old.get(id)
}

// RequestCollection asks the background thread to collect on its next
// tick; a no-op if the background thread is not running (the caller
// should call Collect directly in that case).
func (gc *GarbageCollector) RequestCollection() {
	gc.collectionRequested.Store(true)
}

// Collect performs one synchronous collection cycle: a young-only
// collection unless the old generation is more than 80% full, in which
// case it performs a full collection (spec.md §4.5 "collect").
func (gc *GarbageCollector) Collect() {
	start := time.Now()

	kind := "young"
	if gc.old.usageRatio() > 0.8 {
		kind = "full"
		gc.collectFull()
	} else {
		gc.collectYoung()
	}

	duration := time.Since(start)
	if tl := gc.trace.Load(); tl != nil {
		_ = tl.Append(tracelog.EventGC, 0, fmt.Sprintf("kind=%s duration=%s", kind, duration))
	}
	gc.statsMu.Lock()
	gc.stats.TotalCollections++
	pauseUS := float64(duration.Microseconds())
	if pauseUS > gc.stats.MaxPauseUS {
		gc.stats.MaxPauseUS = pauseUS
	}
	n := float64(gc.stats.TotalCollections)
	gc.stats.AvgPauseUS = (gc.stats.AvgPauseUS*(n-1) + pauseUS) / n
	gc.statsMu.Unlock()

	if gc.config.Debug && gc.log != nil {
		gc.log.Debug("gc: collection completed", "duration", duration)
	}
}

func (gc *GarbageCollector) collectYoung() {
	gc.statsMu.Lock()
	gc.stats.Young++
	gc.statsMu.Unlock()

	marked := gc.markFromRoots()
	collected := gc.sweepGeneration(gc.young, marked)
	gc.promoteSurvivors(marked)

	gc.statsMu.Lock()
	gc.stats.BytesCollected += collected
	gc.stats.HeapSize -= min(collected, gc.stats.HeapSize)
	gc.statsMu.Unlock()
}

func (gc *GarbageCollector) collectFull() {
	gc.statsMu.Lock()
	gc.stats.Full++
	gc.statsMu.Unlock()

	marked := gc.markFromRoots()
	collected := gc.sweepGeneration(gc.young, marked) + gc.sweepGeneration(gc.old, marked)

	gc.statsMu.Lock()
	gc.stats.BytesCollected += collected
	gc.stats.HeapSize -= min(collected, gc.stats.HeapSize)
	gc.statsMu.Unlock()
}

// markFromRoots performs the tri-color mark phase, returning the set of
// reachable object ids.
func (gc *GarbageCollector) markFromRoots() map[ObjectID]struct{} {
	marked := make(map[ObjectID]struct{})
	var queue []ObjectID

	for _, id := range gc.roots() {
		if _, seen := marked[id]; seen {
			continue
		}
		marked[id] = struct{}{}
		queue = append(queue, id)
		gc.setColor(id, Gray)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		gc.setColor(id, Black)

		refs, ok := gc.references(id)
		if !ok {
			continue
		}
		for _, ref := range refs {
			if _, seen := marked[ref]; seen {
				continue
			}
			marked[ref] = struct{}{}
			queue = append(queue, ref)
			gc.setColor(ref, Gray)
		}
	}
	return marked
}

func (gc *GarbageCollector) setColor(id ObjectID, color Color) {
	if gc.young.setColor(id, color) {
		return
	}
	gc.old.setColor(id, color)
}

func (gc *GarbageCollector) references(id ObjectID) ([]ObjectID, bool) {
	if refs, ok := gc.young.references(id); ok {
		return refs, true
	}
	return gc.old.references(id)
}

// sweepGeneration deallocates every unmarked object in gen, returning the
// bytes reclaimed.
func (gc *GarbageCollector) sweepGeneration(gen *generation, marked map[ObjectID]struct{}) uint64 {
	var collected uint64
	for _, id := range gen.snapshotIDs() {
		if _, ok := marked[id]; ok {
			continue
		}
		if obj, removed := gen.deallocate(id); removed {
			collected += obj.Header.Size
		}
	}
	gen.mu.Lock()
	gen.collectionCount++
	gen.mu.Unlock()
	return collected
}

// promoteSurvivors moves young objects that are both reachable and old
// enough into the old generation, then ages the remainder.
func (gc *GarbageCollector) promoteSurvivors(marked map[ObjectID]struct{}) {
	var toPromote []ObjectID
	for _, id := range gc.young.snapshotIDs() {
		obj, ok := gc.young.get(id)
		if !ok {
			continue
		}
		if _, reachable := marked[id]; reachable && obj.Header.Age >= uint32(gc.config.PromotionThreshold) {
			toPromote = append(toPromote, id)
		}
	}

	promoted := make(map[ObjectID]struct{}, len(toPromote))
	for _, id := range toPromote {
		obj, ok := gc.young.deallocate(id)
		if !ok {
			continue
		}
		prevAge := obj.Header.Age
		obj.Header.Generation = 1
		obj.Header.Age = 0
		if !gc.old.allocate(id, obj) {
			// old generation full; the object goes back into young with
			// its age unchanged and is retried on a later cycle.
			obj.Header.Generation = 0
			obj.Header.Age = prevAge
			gc.young.allocate(id, obj)
			if gc.config.Debug && gc.log != nil {
				gc.log.Debug("gc: failed to promote object, old generation full", "object", id)
			}
			continue
		}
		promoted[id] = struct{}{}
	}

	for _, id := range gc.young.snapshotIDs() {
		if _, wasPromoted := promoted[id]; wasPromoted {
			continue
		}
		if _, reachable := marked[id]; !reachable {
			continue
		}
		gc.young.mu.Lock()
		if obj, ok := gc.young.objects[id]; ok {
			obj.Header.Age++
		}
		gc.young.mu.Unlock()
	}
}

// Stats returns a snapshot of collection counters, per spec.md §4.5.
func (gc *GarbageCollector) Stats() GCStats {
	gc.statsMu.RLock()
	defer gc.statsMu.RUnlock()
	return gc.stats
}
