// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysfs

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/linux4sam/mpio/fs"
)

// smbusBlockMax is the largest payload of a block transaction, fixed by the
// SMBus protocol.
const smbusBlockMax = 32

// NewSMBus opens an I2C bus for SMBus protocol transactions.
//
// Use it for devices that speak SMBus command semantics, like PMBus power
// monitors and smart batteries. For raw i2c transfers use NewI2C instead.
func NewSMBus(busNumber int) (*SMBus, error) {
	if busNumber < 0 {
		return nil, fmt.Errorf("sysfs-smbus: invalid bus %d", busNumber)
	}
	f, err := fs.Open(fmt.Sprintf("%s/i2c-%d", i2cDevRoot, busNumber), os.O_RDWR)
	if err != nil {
		return nil, fmt.Errorf("sysfs-smbus: %v", err)
	}
	s := &SMBus{f: f, busNumber: busNumber, addr: 0xFFFF}
	// SMBus devices occasionally NAK while busy; the kernel retries the
	// transaction for us.
	if err := s.f.Ioctl(ioctlRetries, 3); err != nil {
		_ = f.Close()
		return nil, s.wrap(err)
	}
	return s, nil
}

// SMBus is an open I2C bus driven with the SMBus protocol helpers of the
// kernel.
type SMBus struct {
	f         *fs.File
	busNumber int

	mu   sync.Mutex
	addr uint16 // currently selected slave; 0xFFFF when none yet
}

// String implements conn.Resource.
func (s *SMBus) String() string {
	return fmt.Sprintf("SMBus%d", s.busNumber)
}

// Halt implements conn.Resource.
func (s *SMBus) Halt() error {
	return nil
}

// Close closes the handle to the bus.
func (s *SMBus) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Close(); err != nil {
		return s.wrap(err)
	}
	return nil
}

// Bus returns the bus number as exported by devfs.
func (s *SMBus) Bus() int {
	return s.busNumber
}

// ReadByte receives a single byte from a device, for devices with a single
// register.
func (s *SMBus) ReadByte(addr uint16) (byte, error) {
	var data [smbusBlockMax + 2]byte
	if err := s.access(addr, smbusRead, 0, smbusByte, &data); err != nil {
		return 0, err
	}
	return data[0], nil
}

// WriteByte sends a single byte to a device.
func (s *SMBus) WriteByte(addr uint16, value byte) error {
	return s.access(addr, smbusWrite, value, smbusByte, nil)
}

// ReadByteData reads a byte from the designated device register.
func (s *SMBus) ReadByteData(addr uint16, command byte) (byte, error) {
	var data [smbusBlockMax + 2]byte
	if err := s.access(addr, smbusRead, command, smbusByteData, &data); err != nil {
		return 0, err
	}
	return data[0], nil
}

// WriteByteData writes a byte to the designated device register.
func (s *SMBus) WriteByteData(addr uint16, command, value byte) error {
	var data [smbusBlockMax + 2]byte
	data[0] = value
	return s.access(addr, smbusWrite, command, smbusByteData, &data)
}

// ReadWordData reads a 16 bits word from the designated device register.
func (s *SMBus) ReadWordData(addr uint16, command byte) (uint16, error) {
	var data [smbusBlockMax + 2]byte
	if err := s.access(addr, smbusRead, command, smbusWordData, &data); err != nil {
		return 0, err
	}
	return uint16(data[0]) | uint16(data[1])<<8, nil
}

// WriteWordData writes a 16 bits word to the designated device register.
func (s *SMBus) WriteWordData(addr uint16, command byte, value uint16) error {
	var data [smbusBlockMax + 2]byte
	data[0] = byte(value)
	data[1] = byte(value >> 8)
	return s.access(addr, smbusWrite, command, smbusWordData, &data)
}

// ReadBlockData reads up to 32 bytes from the designated device register.
// The device decides the length.
func (s *SMBus) ReadBlockData(addr uint16, command byte) ([]byte, error) {
	var data [smbusBlockMax + 2]byte
	if err := s.access(addr, smbusRead, command, smbusBlockData, &data); err != nil {
		return nil, err
	}
	n := int(data[0])
	if n > smbusBlockMax {
		return nil, s.wrap(fmt.Errorf("device returned invalid block length %d", n))
	}
	out := make([]byte, n)
	copy(out, data[1:1+n])
	return out, nil
}

// WriteBlockData writes up to 32 bytes to the designated device register.
func (s *SMBus) WriteBlockData(addr uint16, command byte, value []byte) error {
	if len(value) > smbusBlockMax {
		return s.wrap(fmt.Errorf("block of %d bytes is too large", len(value)))
	}
	var data [smbusBlockMax + 2]byte
	data[0] = byte(len(value))
	copy(data[1:], value)
	return s.access(addr, smbusWrite, command, smbusBlockData, &data)
}

// access selects the slave and runs one kernel SMBus transaction.
func (s *SMBus) access(addr uint16, readWrite, command byte, size uint32, data *[smbusBlockMax + 2]byte) error {
	if addr >= 0x80 {
		return s.wrap(errors.New("invalid address"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr != addr {
		if err := s.f.Ioctl(ioctlSlaveForce, uintptr(addr)); err != nil {
			return s.wrap(err)
		}
		s.addr = addr
	}
	a := smbusIoctlData{
		readWrite: readWrite,
		command:   command,
		size:      size,
	}
	if data != nil {
		a.data = uintptr(unsafe.Pointer(&data[0]))
	}
	if err := s.f.Ioctl(ioctlSMBus, uintptr(unsafe.Pointer(&a))); err != nil {
		return s.wrap(err)
	}
	return nil
}

func (s *SMBus) wrap(err error) error {
	return fmt.Errorf("sysfs-smbus (%s): %v", s, err)
}

// From <linux/i2c.h> and <linux/i2c-dev.h>.
const (
	smbusWrite byte = 0
	smbusRead  byte = 1

	smbusQuick     uint32 = 0
	smbusByte      uint32 = 1
	smbusByteData  uint32 = 2
	smbusWordData  uint32 = 3
	smbusBlockData uint32 = 5
)

// smbusIoctlData is i2c_smbus_ioctl_data from <linux/i2c-dev.h>.
type smbusIoctlData struct {
	readWrite byte
	command   byte
	size      uint32
	data      uintptr // points to a union i2c_smbus_data
}
