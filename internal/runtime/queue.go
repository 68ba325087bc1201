// ============================================================================
// Bulu Runtime Scheduler - Work Queues
// ============================================================================
//
// Package: internal/runtime
// File: queue.go
// Purpose: The global FIFO queue plus per-worker local deque described in
// spec.md §3 ("Work queue") and §4.1 ("Worker loop"). Adapted from the
// donor's internal/worker.Pool buffered-channel queue, generalized from a
// single shared channel into the global-queue-plus-work-stealing-deques
// shape the scheduler spec requires.
//
// ============================================================================

package runtime

import (
	"sync"
	"time"
)

// globalQueue is the scheduler-wide FIFO fallback queue. Every enqueue
// wakes one waiting worker (spec.md §4.1 "Wakeups"); no caller holds the
// queue's mutex across the notify.
type globalQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*Task
	closed bool
}

func newGlobalQueue() *globalQueue {
	q := &globalQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues a Ready task at the back and wakes one idle worker.
func (q *globalQueue) push(t *Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
	q.cond.Signal()
}

// popFront removes and returns the task at the front, non-blocking.
func (q *globalQueue) popFront() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

// waitPopFront blocks on the queue's condition variable until a task is
// available, the queue is closed, or timeout reports true. sync.Cond has no
// timed wait, so a 1ms timer re-wakes the waiter to re-check timeout even
// when nothing is pushed (spec.md requires the poll tick to stay under
// 10ms for wait_all's purposes, so workers never sleep on this
// indefinitely — see scheduler.go's worker loop).
func (q *globalQueue) waitPopFront(timeout func() bool) (*Task, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		if timeout() {
			return nil, false, q.closed
		}
		timer := time.AfterFunc(time.Millisecond, func() {
			q.mu.Lock()
			q.mu.Unlock()
			q.cond.Broadcast()
		})
		q.cond.Wait()
		timer.Stop()
	}
	if len(q.items) == 0 {
		return nil, false, q.closed
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true, q.closed
}

// wake signals one waiting worker without requiring the caller to touch
// the condition variable's lock directly.
func (q *globalQueue) wake() {
	q.cond.Signal()
}

func (q *globalQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *globalQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// localDeque is a single worker's local run queue. The owner pushes and
// pops from the front; peers steal from the back (spec.md §3).
type localDeque struct {
	mu    sync.Mutex
	items []*Task
}

func newLocalDeque() *localDeque { return &localDeque{} }

// pushFront is used by the owner to enqueue newly-spawned or re-queued
// work so its own next popFront picks it up first (locality).
func (d *localDeque) pushFront(t *Task) {
	d.mu.Lock()
	d.items = append([]*Task{t}, d.items...)
	d.mu.Unlock()
}

// tryPushFront attempts pushFront without blocking on contention, as used
// by Scheduler.Spawn's "local queue preferred, global fallback" policy
// (spec.md §4.1).
func (d *localDeque) tryPushFront(t *Task) bool {
	if !d.mu.TryLock() {
		return false
	}
	d.items = append([]*Task{t}, d.items...)
	d.mu.Unlock()
	return true
}

// popFront is the owner's dequeue operation.
func (d *localDeque) popFront() (*Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil, false
	}
	t := d.items[0]
	d.items = d.items[1:]
	return t, true
}

// stealBack is a peer worker's attempt to take the oldest task off this
// deque's back end, avoiding contention with the owner's front-end
// operations.
func (d *localDeque) stealBack() (*Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.items)
	if n == 0 {
		return nil, false
	}
	t := d.items[n-1]
	d.items = d.items[:n-1]
	return t, true
}

func (d *localDeque) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}
