// ============================================================================
// Bulu Runtime Scheduler - M:N Task Scheduler
// ============================================================================
//
// Package: internal/runtime
// File: scheduler.go
// Purpose: N fixed worker threads executing Tasks to their next suspension
// point, with work-stealing between local deques and a global fallback
// queue, per spec.md §4.1.
//
// Adapted from the donor repository's internal/worker.Pool +
// internal/controller.Controller dispatch/result loops: the donor pairs a
// fixed worker goroutine pool with a buffered task channel and a separate
// controller loop doing batch dispatch; here the two collapse into a
// single scheduler because the task source is direct spawns rather than a
// polled job store, and "dispatch" becomes work-stealing instead of a
// timer-driven batch pop.
//
// ============================================================================

package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bulu-lang/bulu-runtime/internal/tracelog"
)

// ErrSchedulerStopped is returned by operations attempted after Shutdown.
var ErrSchedulerStopped = errors.New("runtime: scheduler stopped")

// pollTick bounds how long a worker sleeps before re-checking for work or
// a shutdown signal; it also bounds wait_all's responsiveness, per
// spec.md §4.1 ("Polling tick ≤ 10 ms").
const pollTick = 5 * time.Millisecond

// parkedEntry is the parked set's value: the suspended task plus the
// fd/event it is waiting on (spec.md §3 "Parked set").
type parkedEntry struct {
	task  *Task
	fd    int
	event IOEvent
}

// Context is the explicit, per-invocation handle a Task's Body uses to
// identify itself and to request a park. Per spec.md §9's redesign flags,
// the donor language's thread-local "current task" lookup is replaced here
// with an explicit argument — idiomatic Go, and immune to the lost-context
// problems a real thread-local has across goroutine hops.
type Context struct {
	Task      *Task
	Scheduler *Scheduler
}

// TaskID returns the id of the task currently executing this Context.
func (c *Context) TaskID() TaskID { return c.Task.ID }

// ResumeArg returns the value attached to this task when it was last
// unparked (e.g. a syscall pool result), or nil on a task's first run.
func (c *Context) ResumeArg() any { return c.Task.resumeArg }

// RequestPark is the builtin-facing park request of spec.md §6 item 3: a
// builtin that would block on I/O calls this instead of blocking the
// worker thread. It returns the park outcome for the Body to return
// immediately; the caller must return this value from its Body without
// further work.
func (c *Context) RequestPark(fd int, event IOEvent) Outcome {
	return Park(fd, event)
}

type workerState struct {
	id      int
	local   *localDeque
	current atomic.Pointer[Task]
}

// Scheduler implements spec.md §4.1's public contract: spawn, park,
// unpark, stats, wait_all, shutdown.
type Scheduler struct {
	nextID uint64

	workers []*workerState
	global  *globalQueue

	parkedMu sync.Mutex
	parked   map[TaskID]*parkedEntry

	poller Poller
	pool   *SyscallPool

	totalSpawned atomic.Uint64
	active       atomic.Int64
	completed    atomic.Uint64
	panicked     atomic.Uint64
	parkedCount atomic.Int64
	parkedTotal atomic.Uint64

	stopCh  chan struct{}
	stopped atomic.Bool
	wg      sync.WaitGroup

	log   *slog.Logger
	debug bool

	trace atomic.Pointer[tracelog.Log]
}

// SetTraceLog installs a trace log that lifecycle transitions (spawn,
// park, unpark, complete, panic) are appended to. Per SPEC_FULL.md's
// "supplemented feature" for internal/tracelog, internal/cli wires this
// up only when the config's tracelog section is enabled; a nil logger
// (the default) makes every trace call a no-op.
func (s *Scheduler) SetTraceLog(tl *tracelog.Log) { s.trace.Store(tl) }

func (s *Scheduler) traceAppend(eventType tracelog.EventType, taskID TaskID, detail string) {
	if tl := s.trace.Load(); tl != nil {
		_ = tl.Append(eventType, uint64(taskID), detail)
	}
}

// NewScheduler constructs a scheduler with n worker threads (the caller
// should pass max(1, runtime.NumCPU()) for the production default) and a
// ready, but not yet running, netpoller and syscall pool.
func NewScheduler(n int, poller Poller, pool *SyscallPool, log *slog.Logger, debug bool) *Scheduler {
	if n < 1 {
		n = 1
	}
	s := &Scheduler{
		workers: make([]*workerState, n),
		global:  newGlobalQueue(),
		parked:  make(map[TaskID]*parkedEntry),
		poller:  poller,
		pool:    pool,
		stopCh:  make(chan struct{}),
		log:     log,
		debug:   debug,
	}
	for i := 0; i < n; i++ {
		s.workers[i] = &workerState{id: i, local: newLocalDeque()}
	}
	return s
}

// Start launches the N worker goroutines and the netpoller's unpark
// bridge. Failure to start is fatal to the caller per spec.md §4.1
// ("Failure to spawn a worker thread is fatal").
func (s *Scheduler) Start() {
	for _, w := range s.workers {
		s.wg.Add(1)
		go s.runWorker(w)
	}
	if s.poller != nil {
		s.wg.Add(1)
		go s.pollBridge()
	}
	if s.pool != nil {
		s.wg.Add(1)
		go s.syscallChecker()
	}
}

// syscallChecker drains the syscall pool's shared result queue, attaches
// each result to its parked task, and re-queues it (spec.md §4.3: "A
// syscall checker thread drains the result queue, finds the parked task,
// attaches the result, and returns the task to the global queue").
func (s *Scheduler) syscallChecker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case tagged := <-s.pool.Results():
			_ = s.Unpark(tagged.TaskID, tagged.Result)
		}
	}
}

// Spawn registers a new task, preferring the local deque selected by
// `task_id mod N`, falling back to the global queue if that deque is
// contended, then wakes one worker. It returns immediately.
func (s *Scheduler) Spawn(body Body) *Task {
	id := TaskID(atomic.AddUint64(&s.nextID, 1))
	t := NewTask(id, body)
	s.totalSpawned.Add(1)
	s.active.Add(1)

	n := len(s.workers)
	target := s.workers[int(id)%n].local
	if target.tryPushFront(t) {
		s.global.wake()
	} else {
		// local deque contended, fall back to the global queue
		s.global.push(t)
	}
	s.traceAppend(tracelog.EventSpawn, id, "")
	return t
}

// Park moves a running task out of the active set, registers it with the
// netpoller, and records it in the parked set. Per spec.md §4.1, it
// decrements the active count; the task is restored to Ready by Unpark.
func (s *Scheduler) Park(task *Task, fd int, event IOEvent) error {
	if s.poller == nil {
		return errIONoPoller
	}
	if err := s.poller.Register(fd, task.ID, event); err != nil {
		return err
	}
	s.parkedMu.Lock()
	s.parked[task.ID] = &parkedEntry{task: task, fd: fd, event: event}
	s.parkedMu.Unlock()
	task.setState(TaskParked)
	s.active.Add(-1)
	s.parkedCount.Add(1)
	s.parkedTotal.Add(1)
	s.traceAppend(tracelog.EventPark, task.ID, fmt.Sprintf("fd=%d event=%v", fd, event))
	return nil
}

// Unpark removes the netpoller registration, restores the task to Ready on
// the global queue, and wakes a worker. Idempotent on an unknown id per
// spec.md §4.2 ("Unregistering an unknown triple is not an error") —
// duplicate readiness notifications for the same task are absorbed here.
func (s *Scheduler) Unpark(id TaskID, resumeArg any) error {
	s.parkedMu.Lock()
	entry, ok := s.parked[id]
	if ok {
		delete(s.parked, id)
	}
	s.parkedMu.Unlock()
	if !ok {
		return nil // already resumed by a duplicate notification
	}
	if s.poller != nil {
		if err := s.poller.Unregister(entry.fd, id); err != nil {
			s.log.Warn("netpoller unregister failed", "task", id, "err", err)
		}
	}
	entry.task.resumeArg = resumeArg
	entry.task.setState(TaskReady)
	s.active.Add(1)
	s.parkedCount.Add(-1)
	s.global.push(entry.task)
	s.traceAppend(tracelog.EventUnpark, id, "")
	return nil
}

// Stats returns a monotonic-counter snapshot.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Total:       s.totalSpawned.Load(),
		Active:      uint64(max64(s.active.Load(), 0)),
		Completed:   s.completed.Load(),
		Panicked:    s.panicked.Load(),
		Workers:     len(s.workers),
		Parked:      uint64(max64(s.parkedCount.Load(), 0)),
		ParkedTotal: s.parkedTotal.Load(),
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// WaitAll blocks the caller until active reaches zero or the deadline
// elapses, polling at pollTick intervals (spec.md §4.1: "Polling tick ≤
// 10 ms"). A zero deadline means wait indefinitely.
func (s *Scheduler) WaitAll(deadline time.Duration) bool {
	var ctx context.Context
	var cancel context.CancelFunc
	if deadline > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), deadline)
		defer cancel()
	} else {
		ctx = context.Background()
	}
	ticker := time.NewTicker(pollTick)
	defer ticker.Stop()
	for {
		if s.active.Load() <= 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// Shutdown signals every worker to exit after its current step and joins
// them. In-flight tasks complete their current step before exit
// (spec.md §7, "Shutting down the runtime").
func (s *Scheduler) Shutdown() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	close(s.stopCh)
	s.global.close()
	s.wg.Wait()
}

// runWorker is the worker loop of spec.md §4.1.
func (s *Scheduler) runWorker(w *workerState) {
	defer s.wg.Done()
	for {
		task, ok := s.dequeue(w)
		if !ok {
			select {
			case <-s.stopCh:
				return
			default:
				continue
			}
		}
		s.runTask(w, task)
	}
}

// dequeue implements the priority order: own local front, global front,
// steal from each peer's local back. If nothing is found it waits briefly
// on the global queue's condition variable.
func (s *Scheduler) dequeue(w *workerState) (*Task, bool) {
	if t, ok := w.local.popFront(); ok {
		return t, true
	}
	if t, ok := s.global.popFront(); ok {
		return t, true
	}
	for _, peer := range s.workers {
		if peer.id == w.id {
			continue
		}
		if t, ok := peer.local.stealBack(); ok {
			return t, true
		}
	}
	deadline := time.Now().Add(pollTick)
	t, found, closed := s.global.waitPopFront(func() bool { return time.Now().After(deadline) })
	if closed && !found {
		return nil, false
	}
	return t, found
}

// runTask executes one step of a task: run to completion or to a
// suspension point, route the outcome, and recover any panic surfacing
// from the task body (spec.md §4.1, "Failure semantics").
func (s *Scheduler) runTask(w *workerState, task *Task) {
	task.setState(TaskRunning)
	w.current.Store(task)
	defer w.current.Store(nil)

	outcome := s.execute(task)

	switch outcome.Kind {
	case OutcomePark:
		if err := s.Park(task, outcome.FD, outcome.Event); err != nil {
			task.err = err
			task.result = nil
			task.setState(TaskPanicked)
			s.panicked.Add(1)
			s.active.Add(-1)
		}
	default:
		if outcome.Err != nil {
			task.err = outcome.Err
			task.setState(TaskPanicked)
			s.panicked.Add(1)
			s.traceAppend(tracelog.EventPanic, task.ID, outcome.Err.Error())
		} else {
			task.result = outcome.Value
			task.setState(TaskCompleted)
			s.completed.Add(1)
			s.traceAppend(tracelog.EventComplete, task.ID, "")
		}
		s.active.Add(-1)
	}
}

// execute runs the task body, converting a Go panic into a Panicked
// outcome so the worker goroutine itself survives (spec.md: "Panics do not
// kill the worker; the worker continues").
func (s *Scheduler) execute(task *Task) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			if s.debug {
				s.log.Debug("task panicked", "task", task.ID, "recover", r, "stack", string(debug.Stack()))
			}
			outcome = Failed(panicError{r})
		}
	}()
	ctx := &Context{Task: task, Scheduler: s}
	return task.Body(ctx)
}

type panicError struct{ v any }

func (p panicError) Error() string { return "panic: " + formatPanic(p.v) }

func formatPanic(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "non-error panic value"
}

// pollBridge drains netpoller readiness notifications and unparks the
// corresponding tasks. It never runs task bodies itself (spec.md §4.2:
// "The poller never runs tasks; it only signals").
func (s *Scheduler) pollBridge() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		ids, err := s.poller.Poll(100 * time.Millisecond)
		if err != nil {
			s.log.Warn("netpoller poll error", "err", err)
			continue
		}
		for _, id := range ids {
			_ = s.Unpark(id, nil)
		}
	}
}
