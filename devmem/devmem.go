// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package devmem maps physical memory through /dev/mem for direct register
// access.
//
// This bypasses every kernel driver, so it is a tool of last resort: poking
// a peripheral the kernel also drives will confuse the driver. It requires
// root, and a kernel built without CONFIG_STRICT_DEVMEM.
package devmem

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/linux4sam/mpio/fs"
)

// ErrOutOfRange is returned when an access falls outside the mapped window.
var ErrOutOfRange = errors.New("offset out of range")

// Open maps size bytes of physical memory starting at the given address.
//
// The mapping is rounded out to whole pages; accesses are offsets relative
// to addr, not to the page start.
func Open(addr uint64, size int) (*Mem, error) {
	if size <= 0 {
		return nil, fmt.Errorf("devmem: invalid size %d", size)
	}
	f, err := fs.Open(devMemPath, os.O_RDWR|os.O_SYNC)
	if err != nil {
		return nil, fmt.Errorf("devmem: %v", err)
	}
	defer f.Close()
	pageSize := uint64(os.Getpagesize())
	pageBase := addr &^ (pageSize - 1)
	off := int(addr - pageBase)
	mapLen := (off + size + int(pageSize) - 1) &^ (int(pageSize) - 1)
	b, err := fs.Mmap(f.Fd(), int64(pageBase), mapLen)
	if err != nil {
		return nil, fmt.Errorf("devmem: mapping %#x: %v", addr, err)
	}
	return &Mem{addr: addr, mem: b, off: off, size: size}, nil
}

// Mem is a window of mapped physical memory.
type Mem struct {
	addr uint64
	mem  []byte
	off  int // offset of addr inside the page aligned mapping
	size int
}

// String implements conn.Resource.
func (m *Mem) String() string {
	return fmt.Sprintf("devmem@%#x", m.addr)
}

// Halt implements conn.Resource.
func (m *Mem) Halt() error {
	return nil
}

// Close unmaps the window.
func (m *Mem) Close() error {
	b := m.mem
	m.mem = nil
	return fs.Munmap(b)
}

// Base returns the physical address of the start of the window.
func (m *Mem) Base() uint64 {
	return m.addr
}

// Size returns the usable size of the window.
func (m *Mem) Size() int {
	return m.size
}

// Read8 reads one byte at the given offset.
func (m *Mem) Read8(offset int) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return *(*uint8)(unsafe.Pointer(&m.mem[m.off+offset])), nil
}

// Read16 reads a 16 bits naturally aligned register at the given offset.
func (m *Mem) Read16(offset int) (uint16, error) {
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return *(*uint16)(unsafe.Pointer(&m.mem[m.off+offset])), nil
}

// Read32 reads a 32 bits naturally aligned register at the given offset.
func (m *Mem) Read32(offset int) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return *(*uint32)(unsafe.Pointer(&m.mem[m.off+offset])), nil
}

// Write8 writes one byte at the given offset.
func (m *Mem) Write8(offset int, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	*(*uint8)(unsafe.Pointer(&m.mem[m.off+offset])) = value
	return nil
}

// Write16 writes a 16 bits naturally aligned register at the given offset.
func (m *Mem) Write16(offset int, value uint16) error {
	if err := m.check(offset, 2); err != nil {
		return err
	}
	*(*uint16)(unsafe.Pointer(&m.mem[m.off+offset])) = value
	return nil
}

// Write32 writes a 32 bits naturally aligned register at the given offset.
func (m *Mem) Write32(offset int, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	*(*uint32)(unsafe.Pointer(&m.mem[m.off+offset])) = value
	return nil
}

// ReadReg reads a single 32 bits register at the given physical address.
//
// It maps the page, reads and unmaps. For repeated accesses open a Mem and
// keep it around instead.
func ReadReg(addr uint64) (uint32, error) {
	m, err := Open(addr, 4)
	if err != nil {
		return 0, err
	}
	defer m.Close()
	return m.Read32(0)
}

// WriteReg writes a single 32 bits register at the given physical address.
func WriteReg(addr uint64, value uint32) error {
	m, err := Open(addr, 4)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Write32(0, value)
}

func (m *Mem) check(offset, width int) error {
	if m.mem == nil {
		return fmt.Errorf("devmem (%s): window is closed", m)
	}
	if offset < 0 || offset+width > m.size {
		return fmt.Errorf("devmem (%s): %w: %#x", m, ErrOutOfRange, offset)
	}
	if offset%width != 0 {
		return fmt.Errorf("devmem (%s): %#x is not %d bytes aligned", m, offset, width)
	}
	return nil
}

var devMemPath = "/dev/mem"
