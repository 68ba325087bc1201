//go:build darwin || dragonfly || freebsd || netbsd || openbsd

// ============================================================================
// Bulu Runtime Netpoller - BSD/macOS (kqueue)
// ============================================================================
//
// Package: internal/runtime
// File: netpoller_kqueue.go
// Purpose: BSD/macOS platform mapping required by spec.md §4.2: kqueue.
//
// ============================================================================

package runtime

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	kq    int
	table *registrationTable
}

// NewPoller constructs the platform netpoller. On BSD/macOS this is
// kqueue, per spec.md §4.2.
func NewPoller() (Poller, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	return &kqueuePoller{kq: fd, table: newRegistrationTable()}, nil
}

func kqueueFilters(mask uint8) []int16 {
	var filters []int16
	if mask&1 != 0 {
		filters = append(filters, unix.EVFILT_READ)
	}
	if mask&2 != 0 {
		filters = append(filters, unix.EVFILT_WRITE)
	}
	return filters
}

func (p *kqueuePoller) Register(fd int, task TaskID, event IOEvent) error {
	isNew, widened := p.table.add(fd, task, event)
	if !isNew && !widened {
		return nil
	}
	mask := p.table.maskFor(fd)
	var changes []unix.Kevent_t
	for _, filter := range kqueueFilters(mask) {
		var kev unix.Kevent_t
		unix.SetKevent(&kev, fd, int(filter), unix.EV_ADD|unix.EV_CLEAR)
		changes = append(changes, kev)
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return fmt.Errorf("kevent add: %w", err)
	}
	return nil
}

func (p *kqueuePoller) Unregister(fd int, task TaskID) error {
	empty := p.table.remove(fd, task)
	if !empty {
		return nil
	}
	changes := []unix.Kevent_t{{}, {}}
	unix.SetKevent(&changes[0], fd, unix.EVFILT_READ, unix.EV_DELETE)
	unix.SetKevent(&changes[1], fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	// Deleting a filter that was never armed returns ENOENT, which is not
	// an error per spec.md §4.2; kevent applies changes best-effort.
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	if err != nil && err != unix.ENOENT {
		return fmt.Errorf("kevent delete: %w", err)
	}
	return nil
}

func (p *kqueuePoller) Poll(timeout time.Duration) ([]TaskID, error) {
	events := make([]unix.Kevent_t, 128)
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	n, err := unix.Kevent(p.kq, nil, events, &ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("kevent wait: %w", err)
	}
	var ready []TaskID
	for i := 0; i < n; i++ {
		ready = append(ready, p.table.waitersFor(int(events[i].Ident))...)
	}
	return ready, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}
