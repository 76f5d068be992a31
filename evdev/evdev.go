// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package evdev reads input events from the Linux event device interface,
// /dev/input/eventN. This covers keyboards, push buttons described in the
// device tree as gpio-keys, touchscreens and rotary encoders.
package evdev

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/linux4sam/mpio/fs"
)

// Event types from <linux/input-event-codes.h>.
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvRel uint16 = 0x02
	EvAbs uint16 = 0x03
	EvMsc uint16 = 0x04
	EvSw  uint16 = 0x05
)

// Event is one decoded input event.
type Event struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value int32
}

// ID identifies the hardware behind an event device.
type ID struct {
	BusType uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// Enumerate returns the device names of the input devices available on the
// system, like "event0".
func Enumerate() ([]string, error) {
	items, err := filepath.Glob(evdevRoot + "/event*")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, item := range items {
		names = append(names, filepath.Base(item))
	}
	sort.Strings(names)
	return names, nil
}

// New opens an input device by name, like "event0".
func New(name string) (*Device, error) {
	if strings.HasPrefix(name, "/dev/input/") {
		name = name[len("/dev/input/"):]
	}
	f, err := fs.Open(evdevRoot+"/"+name, os.O_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("evdev: %v", err)
	}
	return &Device{name: name, f: f}, nil
}

// Device is an open input event device.
type Device struct {
	name string
	f    *fs.File
}

// String implements conn.Resource.
func (d *Device) String() string {
	return d.name
}

// Halt implements conn.Resource.
func (d *Device) Halt() error {
	return nil
}

// Close closes the device.
func (d *Device) Close() error {
	if err := d.f.Close(); err != nil {
		return d.wrap(err)
	}
	return nil
}

// DriverVersion returns the evdev driver version as (major, minor, patch).
func (d *Device) DriverVersion() (int, int, int, error) {
	var v int32
	if err := d.f.Ioctl(fs.IOR('E', 0x01, unsafe.Sizeof(v)), uintptr(unsafe.Pointer(&v))); err != nil {
		return 0, 0, 0, d.wrap(err)
	}
	return int(v >> 16), int(v >> 8 & 0xff), int(v & 0xff), nil
}

// ID returns the identity of the hardware behind the device.
func (d *Device) ID() (ID, error) {
	var id ID
	if err := d.f.Ioctl(fs.IOR('E', 0x02, unsafe.Sizeof(id)), uintptr(unsafe.Pointer(&id))); err != nil {
		return ID{}, d.wrap(err)
	}
	return id, nil
}

// Name returns the human readable name of the device, like "gpio-keys".
func (d *Device) Name() (string, error) {
	var buf [256]byte
	if err := d.f.Ioctl(fs.IOR('E', 0x06, uintptr(len(buf))), uintptr(unsafe.Pointer(&buf[0]))); err != nil {
		return "", d.wrap(err)
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n]), nil
}

// Read returns the next input event.
//
// It blocks until an event arrives or the timeout expires, in which case it
// returns os.ErrDeadlineExceeded. Pass a negative timeout to block
// indefinitely.
func (d *Device) Read(timeout time.Duration) (Event, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}
	for {
		fds := []unix.PollFd{{Fd: int32(d.f.Fd()), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return Event{}, d.wrap(err)
		}
		if n == 0 {
			return Event{}, os.ErrDeadlineExceeded
		}
		break
	}
	// input_event from <linux/input.h>. The timestamp is a timeval, so the
	// field sizes follow the architecture.
	var raw struct {
		Time  unix.Timeval
		Type  uint16
		Code  uint16
		Value int32
	}
	if err := binary.Read(d.f, binary.LittleEndian, &raw); err != nil {
		return Event{}, d.wrap(err)
	}
	return Event{
		Time:  time.Unix(raw.Time.Unix()),
		Type:  raw.Type,
		Code:  raw.Code,
		Value: raw.Value,
	}, nil
}

// ReadFunc delivers input events to f until f returns false or reading
// fails.
func (d *Device) ReadFunc(f func(e Event) bool) error {
	for {
		e, err := d.Read(-1)
		if err != nil {
			return err
		}
		if !f(e) {
			return nil
		}
	}
}

func (d *Device) wrap(err error) error {
	return fmt.Errorf("evdev (%s): %v", d, err)
}

var evdevRoot = "/dev/input"
