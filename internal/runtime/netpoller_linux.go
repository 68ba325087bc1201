//go:build linux

// ============================================================================
// Bulu Runtime Netpoller - Linux (epoll)
// ============================================================================
//
// Package: internal/runtime
// File: netpoller_linux.go
// Purpose: Linux platform mapping required by spec.md §4.2: epoll_create1,
// level-triggered.
//
// ============================================================================

package runtime

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

type epollPoller struct {
	epfd int
	table *registrationTable
}

// NewPoller constructs the platform netpoller. On Linux this is epoll,
// level-triggered as spec.md §4.2 requires.
func NewPoller() (Poller, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &epollPoller{epfd: fd, table: newRegistrationTable()}, nil
}

func epollEvents(mask uint8) uint32 {
	var ev uint32
	if mask&1 != 0 {
		ev |= unix.EPOLLIN
	}
	if mask&2 != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *epollPoller) Register(fd int, task TaskID, event IOEvent) error {
	isNew, widened := p.table.add(fd, task, event)
	if !isNew && !widened {
		return nil
	}
	mask := p.table.maskFor(fd)
	ev := unix.EpollEvent{Events: epollEvents(mask), Fd: int32(fd)}
	op := unix.EPOLL_CTL_MOD
	if isNew {
		op = unix.EPOLL_CTL_ADD
	}
	if err := unix.EpollCtl(p.epfd, op, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl: %w", err)
	}
	return nil
}

func (p *epollPoller) Unregister(fd int, task TaskID) error {
	empty := p.table.remove(fd, task)
	if !empty {
		return nil
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		// Removing an fd the kernel already dropped (e.g. closed socket)
		// is not an error per spec.md §4.2.
		if err != unix.ENOENT && err != unix.EBADF {
			return fmt.Errorf("epoll_ctl del: %w", err)
		}
	}
	return nil
}

func (p *epollPoller) Poll(timeout time.Duration) ([]TaskID, error) {
	events := make([]unix.EpollEvent, 128)
	msec := int(timeout / time.Millisecond)
	if msec <= 0 && timeout > 0 {
		msec = 1
	}
	n, err := unix.EpollWait(p.epfd, events, msec)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("epoll_wait: %w", err)
	}
	var ready []TaskID
	for i := 0; i < n; i++ {
		ready = append(ready, p.table.waitersFor(int(events[i].Fd))...)
	}
	return ready, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
