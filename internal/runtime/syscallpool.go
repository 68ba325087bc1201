// ============================================================================
// Bulu Runtime Syscall Pool - Blocking Call Offload
// ============================================================================
//
// Package: internal/runtime
// File: syscallpool.go
// Purpose: spec.md §4.3. Offloads calls that may block indefinitely (TCP
// accept/read/write) onto a small fixed pool of dedicated threads so
// scheduler workers are never stalled waiting on them.
//
// Adapted from the donor repository's internal/worker.JobSource
// abstraction (internal/worker/source.go): there, a Pool pulls jobs from a
// JobSource and reports results back asynchronously via an ack loop; here
// the "jobs" are blocking syscalls rather than business jobs, and the
// asynchronous result path feeds the scheduler's Unpark instead of an
// Acknowledge RPC. The synchronous "reply channel" path is new: callers
// outside a task context (the donor's equivalent of "the main thread")
// have no task to park, so they block on a one-shot channel instead.
//
// ============================================================================

package runtime

import (
	"context"
	"errors"
	"time"
)

// ErrPoolSaturated is returned by Submit when the internal job queue is
// still full after the bounded backoff described in SPEC_FULL.md's
// "supplemented behavior" section.
var ErrPoolSaturated = errors.New("runtime: syscall pool saturated")

// Op is a blocking host operation the syscall pool executes on a
// dedicated thread. Implementations must not return until the operation
// completes or fails; the whole point of offloading them here is that
// blocking is safe.
type Op interface {
	Execute() Result
}

// Result is the tagged outcome of a blocking Op, per spec.md §4.3.
type Result struct {
	IsOK     bool
	Value    any
	ErrorMsg string
}

// OK builds a successful Result.
func OK(value any) Result { return Result{IsOK: true, Value: value} }

// Err builds a failed Result.
func Err(msg string) Result { return Result{IsOK: false, ErrorMsg: msg} }

// TaggedResult pairs a completed Op's Result with the task id that
// submitted it, for the asynchronous delivery path.
type TaggedResult struct {
	TaskID TaskID
	Result Result
}

type job struct {
	op     Op
	taskID TaskID
	reply  chan Result // nil for the asynchronous path
}

// SyscallPool is the fixed-size worker pool of spec.md §4.3. Default size
// is 4; pool size bounds concurrent blocking OS calls, not the number of
// tasks that may be waiting (which simply queue).
type SyscallPool struct {
	jobs    chan job
	results chan TaggedResult

	stopCh chan struct{}
	done   chan struct{}
}

// NewSyscallPool constructs a pool with the given number of worker
// threads and job queue capacity.
func NewSyscallPool(size, queueCapacity int) *SyscallPool {
	if size < 1 {
		size = 4
	}
	if queueCapacity < size {
		queueCapacity = size * 16
	}
	p := &SyscallPool{
		jobs:    make(chan job, queueCapacity),
		results: make(chan TaggedResult, queueCapacity),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *SyscallPool) worker() {
	for {
		select {
		case <-p.stopCh:
			return
		case j := <-p.jobs:
			res := j.op.Execute()
			if j.reply != nil {
				j.reply <- res
				continue
			}
			select {
			case p.results <- TaggedResult{TaskID: j.taskID, Result: res}:
			case <-p.stopCh:
				return
			}
		}
	}
}

// Results is the shared result queue the scheduler's checker thread drains
// to find the parked task, attach the result, and re-queue it
// (spec.md §4.3).
func (p *SyscallPool) Results() <-chan TaggedResult { return p.results }

// Submit enqueues a blocking op tagged with a task id for asynchronous
// delivery. The caller must already have parked taskID (e.g. via
// Scheduler.Park with a sentinel fd) before the result can be collected;
// in practice builtins call Submit and then return a park outcome in the
// same step. Per the original_source's syscall_thread.rs, a momentarily
// full queue gets a few short retries before surfacing backpressure to
// the caller, rather than failing immediately.
func (p *SyscallPool) Submit(op Op, taskID TaskID) error {
	j := job{op: op, taskID: taskID}
	const attempts = 3
	backoff := time.Millisecond
	for i := 0; i < attempts; i++ {
		select {
		case p.jobs <- j:
			return nil
		case <-p.stopCh:
			return ErrPoolSaturated
		default:
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	select {
	case p.jobs <- j:
		return nil
	default:
		return ErrPoolSaturated
	}
}

// SubmitSync submits a blocking op and waits on a private one-shot
// channel for its result, for callers outside a task context (spec.md §6
// item 4: "it can choose synchronous ... for callers that prefer to block
// synchronously").
func (p *SyscallPool) SubmitSync(ctx context.Context, op Op) (Result, error) {
	reply := make(chan Result, 1)
	j := job{op: op, reply: reply}
	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-p.stopCh:
		return Result{}, ErrPoolSaturated
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Shutdown stops accepting new work and terminates worker threads.
func (p *SyscallPool) Shutdown() {
	close(p.stopCh)
}
