// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/linux4sam/mpio/fs"
)

// NewSPI opens a SPI port via its devfs interface at /dev/spidevB.C where B
// is the bus number and C the chip select line.
func NewSPI(busNumber, chipSelect int) (*SPI, error) {
	if busNumber < 0 || chipSelect < 0 || chipSelect > 255 {
		return nil, fmt.Errorf("sysfs-spi: invalid port %d.%d", busNumber, chipSelect)
	}
	f, err := fs.Open(fmt.Sprintf("%s/spidev%d.%d", spiDevRoot, busNumber, chipSelect), os.O_RDWR)
	if err != nil {
		return nil, fmt.Errorf("sysfs-spi: %v", err)
	}
	return &SPI{
		spiConn: spiConn{
			name:       fmt.Sprintf("SPI%d.%d", busNumber, chipSelect),
			f:          f,
			busNumber:  busNumber,
			chipSelect: chipSelect,
		},
	}, nil
}

// SPI is an open SPI port.
type SPI struct {
	spiConn
}

// Close closes the handle to the SPI driver. It is not a requirement to
// close before process termination.
func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Close(); err != nil {
		return s.wrap(err)
	}
	return nil
}

// LimitSpeed implements spi.Port.
func (s *SPI) LimitSpeed(f physic.Frequency) error {
	if f < physic.Hertz {
		return s.wrap(fmt.Errorf("invalid speed %s", f))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freqPort = f
	return nil
}

// Connect implements spi.Port.
//
// It must be called before any I/O.
func (s *SPI) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if f < physic.Hertz {
		return nil, s.wrap(fmt.Errorf("invalid speed %s", f))
	}
	if bits < 1 || bits > 32 {
		return nil, s.wrap(fmt.Errorf("invalid bits %d", bits))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil, s.wrap(errors.New("already connected"))
	}
	s.freqConn = f
	s.bitsPerWord = uint8(bits)

	m := mode & spi.Mode3
	var kmode uint8
	if m&spi.Mode1 != 0 {
		kmode |= spiCPHA
	}
	if m&spi.Mode2 != 0 {
		kmode |= spiCPOL
	}
	if mode&spi.HalfDuplex != 0 {
		kmode |= spi3Wire
		s.halfDuplex = true
	}
	if mode&spi.NoCS != 0 {
		kmode |= spiNoCS
	}
	if mode&spi.LSBFirst != 0 {
		kmode |= spiLSBFirst
	}
	if err := s.setFlag(spiIOCMode, uint64(kmode)); err != nil {
		return nil, s.wrap(err)
	}
	if err := s.setFlag(spiIOCBitsPerWord, uint64(bits)); err != nil {
		return nil, s.wrap(err)
	}
	if err := s.setFlag(spiIOCMaxSpeedHz, uint64(f/physic.Hertz)); err != nil {
		return nil, s.wrap(err)
	}
	s.connected = true
	return &s.spiConn, nil
}

// MaxTxSize implements conn.Limits.
func (s *SPI) MaxTxSize() int {
	if n, err := readInt(spiBufSizePath); err == nil {
		return n
	}
	return 4096
}

//

// spiConn implements spi.Conn.
type spiConn struct {
	name       string
	f          *fs.File
	busNumber  int
	chipSelect int

	mu          sync.Mutex
	freqPort    physic.Frequency // speed cap from LimitSpeed
	freqConn    physic.Frequency // speed from Connect
	bitsPerWord uint8
	connected   bool
	halfDuplex  bool
}

// String implements conn.Resource.
func (s *spiConn) String() string {
	return s.name
}

// Halt implements conn.Resource.
func (s *spiConn) Halt() error {
	return nil
}

// Tx implements spi.Conn.
func (s *spiConn) Tx(w, r []byte) error {
	if len(w) == 0 && len(r) == 0 {
		return s.wrap(errors.New("empty transaction"))
	}
	p := spi.Packet{W: w, R: r}
	return s.TxPackets([]spi.Packet{p})
}

// TxPackets implements spi.Conn.
//
// The whole slice runs as one transaction, chip select stays asserted
// across packets unless a packet clears KeepCS.
func (s *spiConn) TxPackets(p []spi.Packet) error {
	if len(p) == 0 {
		return s.wrap(errors.New("empty transaction"))
	}
	for i := range p {
		if s.halfDuplex && len(p[i].W) != 0 && len(p[i].R) != 0 {
			return s.wrap(errors.New("port is half-duplex, cannot send and receive in the same packet"))
		}
		if len(p[i].W) != 0 && len(p[i].R) != 0 && len(p[i].W) != len(p[i].R) {
			return s.wrap(fmt.Errorf("full duplex requires w and r of matching length, got %d and %d", len(p[i].W), len(p[i].R)))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return s.wrap(errors.New("connect before use"))
	}
	speed := s.freqConn
	if s.freqPort != 0 && s.freqPort < speed {
		speed = s.freqPort
	}
	m := make([]spiIOCTransfer, len(p))
	for i := range p {
		t := &m[i]
		if len(p[i].W) != 0 {
			t.tx = uint64(uintptr(unsafe.Pointer(&p[i].W[0])))
			t.length = uint32(len(p[i].W))
		}
		if len(p[i].R) != 0 {
			t.rx = uint64(uintptr(unsafe.Pointer(&p[i].R[0])))
			t.length = uint32(len(p[i].R))
		}
		t.speedHz = uint32(speed / physic.Hertz)
		t.bitsPerWord = p[i].BitsPerWord
		if t.bitsPerWord == 0 {
			t.bitsPerWord = s.bitsPerWord
		}
		if !p[i].KeepCS {
			t.csChange = 1
		}
	}
	if err := s.f.Ioctl(spiIOCTx(len(m)), uintptr(unsafe.Pointer(&m[0]))); err != nil {
		return s.wrap(err)
	}
	return nil
}

// Duplex implements spi.Conn.
func (s *spiConn) Duplex() conn.Duplex {
	if s.halfDuplex {
		return conn.Half
	}
	return conn.Full
}

// MaxTxSize implements conn.Limits.
func (s *spiConn) MaxTxSize() int {
	if n, err := readInt(spiBufSizePath); err == nil {
		return n
	}
	return 4096
}

func (s *spiConn) setFlag(op uintptr, arg uint64) error {
	return s.f.Ioctl(op, uintptr(unsafe.Pointer(&arg)))
}

func (s *spiConn) wrap(err error) error {
	return fmt.Errorf("sysfs-spi (%s): %v", s, err)
}

// From <linux/spi/spidev.h>.
const (
	spiCPHA     uint8 = 1 << 0
	spiCPOL     uint8 = 1 << 1
	spiCSHigh   uint8 = 1 << 2
	spiLSBFirst uint8 = 1 << 3
	spi3Wire    uint8 = 1 << 4
	spiLoop     uint8 = 1 << 5
	spiNoCS     uint8 = 1 << 6
)

const spiIOCMagic = 'k'

var (
	spiIOCMode        = fs.IOW(spiIOCMagic, 1, 1)
	spiIOCBitsPerWord = fs.IOW(spiIOCMagic, 3, 1)
	spiIOCMaxSpeedHz  = fs.IOW(spiIOCMagic, 4, 4)
)

// spiIOCTransfer is spi_ioc_transfer from <linux/spi/spidev.h>.
type spiIOCTransfer struct {
	tx          uint64
	rx          uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNBits     uint8
	rxNBits     uint8
	pad         uint16
}

// spiIOCTx is SPI_IOC_MESSAGE(n).
func spiIOCTx(n int) uintptr {
	return fs.IOW(spiIOCMagic, 0, uintptr(n)*unsafe.Sizeof(spiIOCTransfer{}))
}

//

// EnumerateSPI returns the (bus, chip select) pairs of the SPI ports
// available on the system.
func EnumerateSPI() ([][2]int, error) {
	prefix := spiDevRoot + "/spidev"
	items, err := filepath.Glob(prefix + "*")
	if err != nil {
		return nil, err
	}
	var ports [][2]int
	for _, item := range items {
		var bus, cs int
		if _, err := fmt.Sscanf(item[len(prefix):], "%d.%d", &bus, &cs); err == nil {
			ports = append(ports, [2]int{bus, cs})
		}
	}
	return ports, nil
}

// driverSPI implements periph.Driver.
type driverSPI struct {
	ports []string
}

func (d *driverSPI) String() string {
	return "sysfs-spi"
}

func (d *driverSPI) Prerequisites() []string {
	return nil
}

func (d *driverSPI) After() []string {
	return nil
}

func (d *driverSPI) Init() (bool, error) {
	ports, err := EnumerateSPI()
	if err != nil {
		return true, err
	}
	if len(ports) == 0 {
		return false, errors.New("no SPI port found")
	}
	for _, p := range ports {
		bus, cs := p[0], p[1]
		name := fmt.Sprintf("SPI%d.%d", bus, cs)
		d.ports = append(d.ports, name)
		aliases := []string{fmt.Sprintf("/dev/spidev%d.%d", bus, cs)}
		if err := spireg.Register(name, aliases, bus<<8|cs, openerSPI{bus, cs}.Open); err != nil {
			return true, err
		}
	}
	return true, nil
}

type openerSPI struct {
	bus int
	cs  int
}

func (o openerSPI) Open() (spi.PortCloser, error) {
	p, err := NewSPI(o.bus, o.cs)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func init() {
	driverreg.MustRegister(&drvSPI)
}

var drvSPI driverSPI

var (
	spiDevRoot     = "/dev"
	spiBufSizePath = "/sys/module/spidev/parameters/bufsiz"
)

var _ spi.PortCloser = &SPI{}
var _ spi.Conn = &spiConn{}
var _ conn.Limits = &SPI{}
var _ conn.Limits = &spiConn{}
