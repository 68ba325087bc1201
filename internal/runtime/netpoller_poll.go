//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

// ============================================================================
// Bulu Runtime Netpoller - Portable Fallback (poll())
// ============================================================================
//
// Package: internal/runtime
// File: netpoller_poll.go
// Purpose: The portable fallback required by spec.md §4.2 for platforms
// without epoll or kqueue: scan the registration table and call poll()
// each iteration.
//
// ============================================================================

package runtime

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

type pollPoller struct {
	table *registrationTable
}

// NewPoller constructs the platform netpoller. Everywhere epoll and
// kqueue aren't available, this portable poll()-based scan is used.
func NewPoller() (Poller, error) {
	return &pollPoller{table: newRegistrationTable()}, nil
}

func pollEventsFor(mask uint8) int16 {
	var ev int16
	if mask&1 != 0 {
		ev |= unix.POLLIN
	}
	if mask&2 != 0 {
		ev |= unix.POLLOUT
	}
	return ev
}

func (p *pollPoller) Register(fd int, task TaskID, event IOEvent) error {
	p.table.add(fd, task, event)
	return nil
}

func (p *pollPoller) Unregister(fd int, task TaskID) error {
	p.table.remove(fd, task)
	return nil
}

func (p *pollPoller) Poll(timeout time.Duration) ([]TaskID, error) {
	p.table.mu.Lock()
	fds := make([]unix.PollFd, 0, len(p.table.waiters))
	order := make([]int, 0, len(p.table.waiters))
	for fd, ws := range p.table.waiters {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: pollEventsFor(eventMask(ws))})
		order = append(order, fd)
	}
	p.table.mu.Unlock()

	if len(fds) == 0 {
		time.Sleep(timeout)
		return nil, nil
	}

	msec := int(timeout / time.Millisecond)
	if msec <= 0 && timeout > 0 {
		msec = 1
	}
	n, err := unix.Poll(fds, msec)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	var ready []TaskID
	for i, pfd := range fds {
		if pfd.Revents != 0 {
			ready = append(ready, p.table.waitersFor(order[i])...)
		}
	}
	return ready, nil
}

func (p *pollPoller) Close() error { return nil }
