// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"

	"github.com/linux4sam/mpio/fs"
)

// NewI2C opens an I2C bus via its devfs interface as described at
// https://www.kernel.org/doc/Documentation/i2c/dev-interface and
// https://www.kernel.org/doc/Documentation/i2c/functionality.
//
// busNumber is the bus number as exported by devfs, so the 2 in
// "/dev/i2c-2".
func NewI2C(busNumber int) (*I2C, error) {
	if busNumber < 0 {
		return nil, fmt.Errorf("sysfs-i2c: invalid bus %d", busNumber)
	}
	f, err := fs.Open(fmt.Sprintf("%s/i2c-%d", i2cDevRoot, busNumber), os.O_RDWR)
	if err != nil {
		// Try to be helpful; missing permissions are the common failure.
		if os.IsPermission(err) {
			return nil, fmt.Errorf("sysfs-i2c: need more access, try adding the user to the i2c group: %v", err)
		}
		return nil, fmt.Errorf("sysfs-i2c: %v", err)
	}
	i := &I2C{f: f, busNumber: busNumber}

	// Query the controller capabilities. Transactions are refused when the
	// adapter can't do them instead of silently corrupting the bus.
	if err := i.f.Ioctl(ioctlFuncs, uintptr(unsafe.Pointer(&i.fn))); err != nil {
		_ = f.Close()
		return nil, i.wrap(err)
	}
	if i.fn&funcI2C == 0 {
		_ = f.Close()
		return nil, i.wrap(errors.New("adapter does not support plain i2c transactions"))
	}
	return i, nil
}

// I2C is an open I2C bus via sysfs.
//
// It can be used to communicate with multiple devices from multiple
// goroutines.
type I2C struct {
	f         *fs.File
	busNumber int
	fn        functionality

	mu sync.Mutex
}

// Close closes the handle to the I2C driver. It is not a requirement to
// close before process termination.
func (i *I2C) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.f.Close(); err != nil {
		return i.wrap(err)
	}
	return nil
}

// String implements conn.Resource.
func (i *I2C) String() string {
	return fmt.Sprintf("I2C%d", i.busNumber)
}

// Bus returns the bus number as exported by devfs.
func (i *I2C) Bus() int {
	return i.busNumber
}

// Functionality returns the raw I2C_FUNCS capability mask of the adapter.
func (i *I2C) Functionality() uint64 {
	return uint64(i.fn)
}

// Tx execute a transaction as a single operation unit.
func (i *I2C) Tx(addr uint16, w, r []byte) error {
	if addr >= 0x400 || (addr >= 0x80 && i.fn&func10BitAddr == 0) {
		return i.wrap(errors.New("invalid address"))
	}
	if len(w) == 0 && len(r) == 0 {
		return nil
	}
	var flags uint16
	if addr >= 0x80 {
		flags = flagTEN
	}
	msgs := [2]i2cMsg{}
	n := 0
	if len(w) != 0 {
		msgs[n] = i2cMsg{addr: addr, flags: flags, length: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))}
		n++
	}
	if len(r) != 0 {
		msgs[n] = i2cMsg{addr: addr, flags: flags | flagRD, length: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))}
		n++
	}
	p := rdwrIoctlData{
		msgs:  uintptr(unsafe.Pointer(&msgs[0])),
		nmsgs: uint32(n),
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.f.Ioctl(ioctlRdwr, uintptr(unsafe.Pointer(&p))); err != nil {
		return i.wrap(err)
	}
	return nil
}

// SetSpeed implements i2c.Bus.
//
// The bus speed is set by the bus driver via the device tree, it cannot be
// changed at runtime.
func (i *I2C) SetSpeed(f physic.Frequency) error {
	return i.wrap(errors.New("bus speed is fixed by the device tree"))
}

func (i *I2C) wrap(err error) error {
	return fmt.Errorf("sysfs-i2c (%s): %v", i, err)
}

//

// EnumerateI2C returns the bus numbers of the I2C buses available on the
// system.
func EnumerateI2C() ([]int, error) {
	prefix := i2cDevRoot + "/i2c-"
	items, err := filepath.Glob(prefix + "*")
	if err != nil {
		return nil, err
	}
	var buses []int
	for _, item := range items {
		if n, err := strconv.Atoi(item[len(prefix):]); err == nil {
			buses = append(buses, n)
		}
	}
	sort.Ints(buses)
	return buses, nil
}

const (
	ioctlRetries    = 0x701 // I2C_RETRIES
	ioctlTimeout    = 0x702 // I2C_TIMEOUT; in units of 10ms
	ioctlSlave      = 0x703 // I2C_SLAVE
	ioctlTenBit     = 0x704 // I2C_TENBIT
	ioctlFuncs      = 0x705 // I2C_FUNCS
	ioctlSlaveForce = 0x706 // I2C_SLAVE_FORCE
	ioctlRdwr       = 0x707 // I2C_RDWR
	ioctlSMBus      = 0x720 // I2C_SMBUS
)

const (
	flagRD  uint16 = 0x0001 // I2C_M_RD
	flagTEN uint16 = 0x0010 // I2C_M_TEN
)

type functionality uint64

const (
	funcI2C             functionality = 0x00000001
	func10BitAddr       functionality = 0x00000002
	funcSMBusQuick      functionality = 0x00010000
	funcSMBusReadByte   functionality = 0x00020000
	funcSMBusWriteByte  functionality = 0x00040000
	funcSMBusReadData   functionality = 0x00080000
	funcSMBusWriteData  functionality = 0x00100000
	funcSMBusReadBlock  functionality = 0x01000000
	funcSMBusWriteBlock functionality = 0x02000000
)

func (f functionality) String() string {
	var out []string
	if f&funcI2C != 0 {
		out = append(out, "I2C")
	}
	if f&func10BitAddr != 0 {
		out = append(out, "10BIT_ADDR")
	}
	if f&funcSMBusQuick != 0 {
		out = append(out, "SMBUS_QUICK")
	}
	if f&funcSMBusReadByte != 0 {
		out = append(out, "SMBUS_READ_BYTE")
	}
	if f&funcSMBusWriteByte != 0 {
		out = append(out, "SMBUS_WRITE_BYTE")
	}
	if f&funcSMBusReadData != 0 {
		out = append(out, "SMBUS_READ_BYTE_DATA")
	}
	if f&funcSMBusWriteData != 0 {
		out = append(out, "SMBUS_WRITE_BYTE_DATA")
	}
	if f&funcSMBusReadBlock != 0 {
		out = append(out, "SMBUS_READ_BLOCK_DATA")
	}
	if f&funcSMBusWriteBlock != 0 {
		out = append(out, "SMBUS_WRITE_BLOCK_DATA")
	}
	return strings.Join(out, "|")
}

// i2cMsg is i2c_msg from <linux/i2c.h>.
type i2cMsg struct {
	addr   uint16
	flags  uint16
	length uint16
	buf    uintptr
}

// rdwrIoctlData is i2c_rdwr_ioctl_data from <linux/i2c-dev.h>.
type rdwrIoctlData struct {
	msgs  uintptr
	nmsgs uint32
}

//

// driverI2C implements periph.Driver.
type driverI2C struct {
	buses []string
}

func (d *driverI2C) String() string {
	return "sysfs-i2c"
}

func (d *driverI2C) Prerequisites() []string {
	return nil
}

func (d *driverI2C) After() []string {
	return nil
}

func (d *driverI2C) Init() (bool, error) {
	// Enumerate the device nodes, not /sys/bus/i2c/devices: udev rules fix
	// the ACL of /dev/i2c-* only.
	prefix := i2cDevRoot + "/i2c-"
	items, err := filepath.Glob(prefix + "*")
	if err != nil {
		return true, err
	}
	if len(items) == 0 {
		return false, errors.New("no I2C bus found")
	}
	for _, item := range items {
		bus, err := strconv.Atoi(item[len(prefix):])
		if err != nil {
			continue
		}
		name := fmt.Sprintf("/dev/i2c-%d", bus)
		d.buses = append(d.buses, name)
		aliases := []string{fmt.Sprintf("I2C%d", bus)}
		n := bus
		if err := i2creg.Register(name, aliases, n, openerI2C(n).Open); err != nil {
			return true, err
		}
	}
	return true, nil
}

type openerI2C int

func (o openerI2C) Open() (i2c.BusCloser, error) {
	b, err := NewI2C(int(o))
	if err != nil {
		return nil, err
	}
	return b, nil
}

func init() {
	driverreg.MustRegister(&drvI2C)
}

var drvI2C driverI2C

var i2cDevRoot = "/dev"

var _ i2c.Bus = &I2C{}
var _ i2c.BusCloser = &I2C{}
