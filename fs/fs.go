// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package fs provides access to the file system primitives the peripheral
// drivers are built on: close-on-exec file handles, ioctl calls, epoll based
// event waiting and memory maps.
//
// It is meant to be used by the other packages in this library, not by
// applications.
package fs

import (
	"os"

	"golang.org/x/sys/unix"
)

// Open opens a file and sets the close-on-exec flag on the underlying file
// descriptor.
//
// Peripheral file descriptors must never leak into processes spawned by the
// application; a forked process holding a GPIO line request or an exported
// sysfs attribute keeps the peripheral busy for an arbitrary amount of time.
func Open(path string, flag int) (*File, error) {
	f, err := os.OpenFile(path, flag|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, err
	}
	return &File{f}, nil
}

// File is a superset of os.File that also exposes ioctl calls.
type File struct {
	*os.File
}

// Ioctl sends an ioctl to the file.
//
// arg points to the request structure when the operation carries one, 0
// otherwise.
func (f *File) Ioctl(op uintptr, arg uintptr) error {
	return Ioctl(f.Fd(), op, arg)
}

// Ioctl sends an ioctl to a raw file descriptor.
func Ioctl(fd, op, arg uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, op, arg); errno != 0 {
		return errno
	}
	return nil
}

// Definitions from <asm-generic/ioctl.h>. The size field is 14 bits on every
// architecture this library runs on.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

// IOC computes an ioctl request number the way the _IOC macro does.
func IOC(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

// IO computes a no-argument ioctl request number.
func IO(typ, nr uintptr) uintptr {
	return IOC(iocNone, typ, nr, 0)
}

// IOR computes a read ioctl request number.
func IOR(typ, nr, size uintptr) uintptr {
	return IOC(iocRead, typ, nr, size)
}

// IOW computes a write ioctl request number.
func IOW(typ, nr, size uintptr) uintptr {
	return IOC(iocWrite, typ, nr, size)
}

// IOWR computes a read-write ioctl request number.
func IOWR(typ, nr, size uintptr) uintptr {
	return IOC(iocRead|iocWrite, typ, nr, size)
}

// Mmap maps length bytes of the file descriptor starting at offset.
func Mmap(fd uintptr, offset int64, length int) ([]byte, error) {
	return unix.Mmap(int(fd), offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Munmap unmaps a mapping returned by Mmap.
func Munmap(b []byte) error {
	return unix.Munmap(b)
}
