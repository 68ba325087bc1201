// ============================================================================
// Bulu Runtime Netpoller - Shared Types
// ============================================================================
//
// Package: internal/runtime
// File: netpoller.go
// Purpose: The event-readiness source of spec.md §4.2. Platform-specific
// files (netpoller_linux.go, netpoller_kqueue.go, netpoller_poll.go)
// implement the Poller interface defined here.
//
// Grounded on the annotated Go runtime netpoller reference retrieved for
// this spec (src/runtime/netpoll.go): one background thread owns the poll
// primitive and the registrations table; registering/unregistering only
// ever touches that table plus issues an OS add/modify/delete, and poll()
// blocks on the OS primitive and returns ready task ids for the scheduler
// to re-queue. Unlike that reference, which lives inside the Go runtime
// itself and parks real goroutines via runtime internals, this is ordinary
// userland Go: a dedicated goroutine, a mutex-protected map, and
// golang.org/x/sys/unix syscalls.
//
// ============================================================================

package runtime

import (
	"sync"
	"time"
)

// Poller is the event-readiness source the Scheduler depends on. Register
// and Unregister are idempotent per spec.md §4.2's edge cases.
type Poller interface {
	Register(fd int, task TaskID, event IOEvent) error
	Unregister(fd int, task TaskID) error
	Poll(timeout time.Duration) ([]TaskID, error)
	Close() error
}

// waiter is one (task, requested event) pair registered against an fd.
type waiter struct {
	task  TaskID
	event IOEvent
}

// registrationTable is the per-fd waiter list shared by every platform
// implementation; it is the thing spec.md §3's "Netpoller registration"
// invariant refers to ("the host poll primitive agrees with this table").
type registrationTable struct {
	mu      sync.Mutex
	waiters map[int][]waiter
}

func newRegistrationTable() *registrationTable {
	return &registrationTable{waiters: make(map[int][]waiter)}
}

// add appends a waiter for fd, returning whether this is the fd's first
// registration (caller must issue an OS add) and whether the event set
// widened against what's already registered (caller must issue an OS
// modify).
func (t *registrationTable) add(fd int, task TaskID, event IOEvent) (isNew, widened bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.waiters[fd]
	if !ok {
		t.waiters[fd] = []waiter{{task: task, event: event}}
		return true, false
	}
	for _, w := range existing {
		if w.task == task && w.event == event {
			return false, false // idempotent re-registration
		}
	}
	prevMask := eventMask(existing)
	t.waiters[fd] = append(existing, waiter{task: task, event: event})
	newMask := prevMask | eventBit(event)
	return false, newMask != prevMask
}

// remove deletes the matching (fd, task) waiter (any event) and reports
// whether the fd's waiter list is now empty (caller must issue an OS
// delete). Removing an unknown pair is not an error, matching spec.md
// §4.2's edge case.
func (t *registrationTable) remove(fd int, task TaskID) (empty bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.waiters[fd]
	if !ok {
		return true
	}
	out := existing[:0]
	for _, w := range existing {
		if w.task != task {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		delete(t.waiters, fd)
		return true
	}
	t.waiters[fd] = out
	return false
}

// waitersFor returns the task ids waiting on fd. A task waiting on
// multiple fds that both fire yields duplicate ids across calls; the
// scheduler's Unpark is idempotent, absorbing the duplicate per spec.md
// §4.2.
func (t *registrationTable) waitersFor(fd int) []TaskID {
	t.mu.Lock()
	defer t.mu.Unlock()
	ws := t.waiters[fd]
	ids := make([]TaskID, len(ws))
	for i, w := range ws {
		ids[i] = w.task
	}
	return ids
}

// maskFor returns the OR of every currently-registered event for fd.
func (t *registrationTable) maskFor(fd int) uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return eventMask(t.waiters[fd])
}

func eventBit(e IOEvent) uint8 {
	switch e {
	case EventRead:
		return 1
	case EventWrite:
		return 2
	default:
		return 3
	}
}

func eventMask(ws []waiter) uint8 {
	var m uint8
	for _, w := range ws {
		m |= eventBit(w.event)
	}
	return m
}
