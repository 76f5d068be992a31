// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package fs

import (
	"golang.org/x/sys/unix"
)

// Events of interest for Event.MakeEvent.
const (
	// EpollIn is delivered when the file descriptor has data to read. Used
	// for character devices like input or IIO capture buffers.
	EpollIn = unix.EPOLLIN
	// EpollPri is delivered on exceptional conditions, which is how sysfs
	// signals an attribute change, like a GPIO edge on the value file.
	EpollPri = unix.EPOLLPRI
)

// Event is an epoll(7) waiter on a single file descriptor.
//
// The zero value is ready for MakeEvent. An Event must not be copied after
// MakeEvent.
type Event struct {
	epollFd int
	fd      int
}

// MakeEvent registers fd for the requested events.
//
// Events are armed edge-triggered: a Wait() only returns for state changes
// that happened after the previous Wait() returned, which is the behavior
// edge detection needs.
func (e *Event) MakeEvent(fd uintptr, events uint32) error {
	epollFd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	e.epollFd = epollFd
	e.fd = int(fd)
	ev := unix.EpollEvent{Events: events | unix.EPOLLET, Fd: int32(fd)}
	if err := unix.EpollCtl(e.epollFd, unix.EPOLL_CTL_ADD, e.fd, &ev); err != nil {
		_ = unix.Close(e.epollFd)
		e.epollFd = 0
		return err
	}
	return nil
}

// Wait waits up to timeoutms milliseconds for an event.
//
// Returns the number of events that occurred, which is 0 on timeout. A
// pending signal makes Wait return (0, nil) early; the caller is expected to
// adjust its timeout and call again.
func (e *Event) Wait(timeoutms int) (int, error) {
	var events [1]unix.EpollEvent
	n, err := unix.EpollWait(e.epollFd, events[:], timeoutms)
	if err == unix.EINTR {
		return 0, nil
	}
	return n, err
}

// Close unregisters the file descriptor and releases the epoll handle. The
// watched file descriptor itself is left open.
func (e *Event) Close() error {
	if e.epollFd == 0 {
		return nil
	}
	err := unix.Close(e.epollFd)
	e.epollFd = 0
	e.fd = 0
	return err
}
