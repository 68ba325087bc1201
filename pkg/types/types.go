// ============================================================================
// Bulu Runtime Core Type Definitions
// ============================================================================
//
// Package: pkg/types
// Purpose: Shared domain vocabulary used across the runtime, metrics, CLI,
// and diagnostics packages without creating import cycles.
//
// ============================================================================

// Package types defines the shared vocabulary of the Bulu concurrency runtime.
package types

import "time"

// TaskID uniquely identifies a scheduled task (goroutine).
type TaskID uint64

// TaskState is one of the lifecycle states a Task may occupy.
type TaskState string

const (
	TaskReady     TaskState = "ready"
	TaskRunning   TaskState = "running"
	TaskBlocked   TaskState = "blocked"
	TaskParked    TaskState = "parked"
	TaskCompleted TaskState = "completed"
	TaskPanicked  TaskState = "panicked"
)

// IOEvent describes the readiness condition a task is waiting for.
type IOEvent int

const (
	EventRead IOEvent = iota
	EventWrite
	EventReadWrite
)

// EscapeContext classifies how a value is being bound, per the memory
// manager's escape rule (spec.md §4.6).
type EscapeContext int

const (
	LocalVariable EscapeContext = iota
	FunctionReturn
	HeapStore
	ClosureCapture
	ChannelSend
)

func (c EscapeContext) String() string {
	switch c {
	case LocalVariable:
		return "LocalVariable"
	case FunctionReturn:
		return "FunctionReturn"
	case HeapStore:
		return "HeapStore"
	case ClosureCapture:
		return "ClosureCapture"
	case ChannelSend:
		return "ChannelSend"
	default:
		return "Unknown"
	}
}

// AllocStrategy is where an allocation ultimately landed.
type AllocStrategy int

const (
	Stack AllocStrategy = iota
	Heap
)

// CheckKind enumerates the individually-switchable safety checks.
type CheckKind int

const (
	CheckBounds CheckKind = iota
	CheckNull
	CheckStack
)

// GCConfig holds the environment-tunable garbage collector policy
// described in spec.md §4.5 and §6.
type GCConfig struct {
	MaxHeapSize        uint64        // LANG_GC_HEAP_SIZE, bytes
	TargetHeapUsage    int           // LANG_GC_TARGET, percent 0..100
	GCThreads          int           // LANG_GC_THREADS
	YoungGenRatio      float64       // fraction of MaxHeapSize given to the young generation
	PromotionThreshold int           // collections survived before promotion to Old
	ConcurrentGC       bool          // LANG_GC_DEBUG toggles logging, this toggles the background thread
	MaxPauseTimeMS     int           // soft pause-time budget; also the background collector's check interval, ms
	Debug              bool          // LANG_GC_DEBUG
}

// DefaultGCConfig returns the documented defaults from spec.md §4.5.
func DefaultGCConfig() GCConfig {
	return GCConfig{
		MaxHeapSize:        1 << 30, // 1 GiB
		TargetHeapUsage:    80,
		GCThreads:          4,
		YoungGenRatio:      0.30,
		PromotionThreshold: 2,
		ConcurrentGC:       true,
		MaxPauseTimeMS:     10,
		Debug:              false,
	}
}

// SafetyConfig is the per-container (bounds, null, stack) switch triple
// from spec.md §4.7. All checks default to enabled.
type SafetyConfig struct {
	Bounds bool
	Null   bool
	Stack  bool
}

// DefaultSafetyConfig enables every check, matching spec.md's stated default.
func DefaultSafetyConfig() SafetyConfig {
	return SafetyConfig{Bounds: true, Null: true, Stack: true}
}

// SchedulerStats is a monotonic-counter snapshot, per spec.md §4.1 `stats()`.
// Parked/ParkedTotal extend the literal {total, active, completed,
// panicked, workers} tuple spec.md names: Parked is the current
// outstanding-park gauge, ParkedTotal the monotonic count of park events
// ever observed, both consumed by internal/metrics' parked gauge/counter.
type SchedulerStats struct {
	Total       uint64
	Active      uint64
	Completed   uint64
	Panicked    uint64
	Workers     int
	Parked      uint64
	ParkedTotal uint64
}

// GCStats mirrors spec.md §4.5 `stats()`.
type GCStats struct {
	TotalCollections uint64
	Young            uint64
	Full             uint64
	BytesAllocated   uint64
	BytesCollected   uint64
	AvgPauseUS       float64
	MaxPauseUS       float64
	HeapSize         uint64
}

// MemoryStats mirrors spec.md §4.6 `stats()`.
type MemoryStats struct {
	StackBytes uint64
	HeapUsed   uint64
	HeapTotal  uint64
	Frames     int
	GC         GCStats
}

// RuntimeSnapshot is the unit the diagnostics package periodically
// persists and the CLI's `stats` command prints.
type RuntimeSnapshot struct {
	TakenAt   time.Time      `json:"taken_at"`
	Scheduler SchedulerStats `json:"scheduler"`
	Memory    MemoryStats    `json:"memory"`
}
