package runtime

import "github.com/bulu-lang/bulu-runtime/pkg/types"

// Local aliases for the shared vocabulary in pkg/types, so the rest of
// this package reads naturally without a types. prefix on every line.

type TaskID = types.TaskID
type TaskState = types.TaskState
type IOEvent = types.IOEvent
type EscapeContext = types.EscapeContext
type AllocStrategy = types.AllocStrategy
type CheckKind = types.CheckKind
type GCConfig = types.GCConfig
type SafetyConfig = types.SafetyConfig
type SchedulerStats = types.SchedulerStats
type GCStats = types.GCStats
type MemoryStats = types.MemoryStats
type RuntimeSnapshot = types.RuntimeSnapshot

const (
	TaskReady     = types.TaskReady
	TaskRunning   = types.TaskRunning
	TaskBlocked   = types.TaskBlocked
	TaskParked    = types.TaskParked
	TaskCompleted = types.TaskCompleted
	TaskPanicked  = types.TaskPanicked
)

const (
	EventRead      = types.EventRead
	EventWrite     = types.EventWrite
	EventReadWrite = types.EventReadWrite
)

const (
	LocalVariable  = types.LocalVariable
	FunctionReturn = types.FunctionReturn
	HeapStore      = types.HeapStore
	ClosureCapture = types.ClosureCapture
	ChannelSend    = types.ChannelSend
)

const (
	Stack = types.Stack
	Heap  = types.Heap
)

const (
	CheckBounds = types.CheckBounds
	CheckNull   = types.CheckNull
	CheckStack  = types.CheckStack
)

// DefaultGCConfig mirrors types.DefaultGCConfig for callers already in
// this package.
func DefaultGCConfig() GCConfig { return types.DefaultGCConfig() }

// DefaultSafetyConfig mirrors types.DefaultSafetyConfig.
func DefaultSafetyConfig() SafetyConfig { return types.DefaultSafetyConfig() }
