// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Definitions from <linux/gpio.h>, uapi v2.

package gpioioctl

import (
	"unsafe"

	"github.com/linux4sam/mpio/fs"
)

const (
	maxNameSize = 32
	maxAttrs    = 10
	maxLines    = 64

	flagUsed         uint64 = 1 << 0
	flagActiveLow    uint64 = 1 << 1
	flagInput        uint64 = 1 << 2
	flagOutput       uint64 = 1 << 3
	flagEdgeRising   uint64 = 1 << 4
	flagEdgeFalling  uint64 = 1 << 5
	flagOpenDrain    uint64 = 1 << 6
	flagOpenSource   uint64 = 1 << 7
	flagBiasPullUp   uint64 = 1 << 8
	flagBiasPullDown uint64 = 1 << 9
	flagBiasDisabled uint64 = 1 << 10

	eventRisingEdge  uint32 = 1
	eventFallingEdge uint32 = 2

	attrIDFlags        uint32 = 1
	attrIDOutputValues uint32 = 2
	attrIDDebounce     uint32 = 3
)

type chipInfo struct {
	name  [maxNameSize]byte
	label [maxNameSize]byte
	lines uint32
}

type lineAttribute struct {
	id      uint32
	padding uint32
	// Interpreted according to id: flags, output bits or debounce period.
	value uint64
}

type lineConfigAttribute struct {
	attr lineAttribute
	mask uint64
}

type lineConfig struct {
	flags    uint64
	numAttrs uint32
	padding  [5]uint32
	attrs    [maxAttrs]lineConfigAttribute
}

type lineRequest struct {
	offsets         [maxLines]uint32
	consumer        [maxNameSize]byte
	config          lineConfig
	numLines        uint32
	eventBufferSize uint32
	padding         [5]uint32
	fd              int32
}

type lineValues struct {
	bits uint64
	mask uint64
}

type lineInfo struct {
	name     [maxNameSize]byte
	consumer [maxNameSize]byte
	offset   uint32
	numAttrs uint32
	flags    uint64
	attrs    [maxAttrs]lineAttribute
	padding  [4]uint32
}

// lineEvent is read from a requested line's file descriptor when edge
// detection is armed. Exported fields so it can be filled with binary.Read.
type lineEvent struct {
	TimestampNs uint64
	ID          uint32
	Offset      uint32
	Seqno       uint32
	LineSeqno   uint32
	Padding     [6]uint32
}

func ioctlChipInfo(fd uintptr, data *chipInfo) error {
	return fs.Ioctl(fd, fs.IOR(0xb4, 0x01, unsafe.Sizeof(chipInfo{})), uintptr(unsafe.Pointer(data)))
}

func ioctlLineInfo(fd uintptr, data *lineInfo) error {
	return fs.Ioctl(fd, fs.IOWR(0xb4, 0x05, unsafe.Sizeof(lineInfo{})), uintptr(unsafe.Pointer(data)))
}

func ioctlLineRequest(fd uintptr, data *lineRequest) error {
	return fs.Ioctl(fd, fs.IOWR(0xb4, 0x07, unsafe.Sizeof(lineRequest{})), uintptr(unsafe.Pointer(data)))
}

func ioctlLineConfig(fd uintptr, data *lineConfig) error {
	return fs.Ioctl(fd, fs.IOWR(0xb4, 0x0d, unsafe.Sizeof(lineConfig{})), uintptr(unsafe.Pointer(data)))
}

func ioctlGetLineValues(fd uintptr, data *lineValues) error {
	return fs.Ioctl(fd, fs.IOWR(0xb4, 0x0e, unsafe.Sizeof(lineValues{})), uintptr(unsafe.Pointer(data)))
}

func ioctlSetLineValues(fd uintptr, data *lineValues) error {
	return fs.Ioctl(fd, fs.IOWR(0xb4, 0x0f, unsafe.Sizeof(lineValues{})), uintptr(unsafe.Pointer(data)))
}
