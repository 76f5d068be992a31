// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package uart implements serial ports on top of the termios tty layer.
//
// Ports are registered in uartreg at init time so they can be opened by
// name, like "ttyS0" or "/dev/ttyUSB0".
package uart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/uart"
	"periph.io/x/conn/v3/uart/uartreg"

	"github.com/linux4sam/mpio/fs"
)

// Enumerate returns the device names of the serial ports available on the
// system, like "ttyS0".
func Enumerate() ([]string, error) {
	var names []string
	for _, pattern := range []string{"ttyS*", "ttyUSB*", "ttyACM*"} {
		items, err := filepath.Glob(uartDevRoot + "/" + pattern)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			names = append(names, filepath.Base(item))
		}
	}
	sort.Strings(names)
	return names, nil
}

// New opens a serial port by device name, like "ttyS0".
//
// The port is opened raw and does not become the controlling terminal of
// the process. Communication parameters are set by Connect.
func New(name string) (*Port, error) {
	if strings.HasPrefix(name, "/dev/") {
		name = name[len("/dev/"):]
	}
	f, err := fs.Open(uartDevRoot+"/"+name, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("uart: %v", err)
	}
	p := &Port{name: name, f: f}
	if err := unix.SetNonblock(int(f.Fd()), false); err != nil {
		_ = f.Close()
		return nil, p.wrap(err)
	}
	return p, nil
}

// Port is an open serial port.
//
// It implements uart.PortCloser. After Connect it is also directly usable
// as an io.ReadWriter; Read honors the timeout set with SetReadTimeout.
type Port struct {
	name string
	f    *fs.File

	mu          sync.Mutex
	freqPort    physic.Frequency // speed cap from LimitSpeed
	connected   bool
	readTimeout time.Duration // 0 means block forever
}

// String implements conn.Resource.
func (p *Port) String() string {
	return p.name
}

// Halt implements conn.Resource. It discards unsent and unread data.
func (p *Port) Halt() error {
	return p.Flush()
}

// Close closes the port.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.f.Close(); err != nil {
		return p.wrap(err)
	}
	return nil
}

// LimitSpeed implements uart.PortCloser.
func (p *Port) LimitSpeed(f physic.Frequency) error {
	if f < physic.Hertz {
		return p.wrap(fmt.Errorf("invalid speed %s", f))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freqPort = f
	return nil
}

// Connect implements uart.Port. It configures the communication parameters
// and returns the connection.
func (p *Port) Connect(f physic.Frequency, stopBit uart.Stop, parity uart.Parity, flow uart.Flow, bits int) (conn.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return nil, p.wrap(errors.New("already connected"))
	}
	if p.freqPort != 0 && f > p.freqPort {
		f = p.freqPort
	}
	baud, ok := bauds[int(f/physic.Hertz)]
	if !ok {
		return nil, p.wrap(fmt.Errorf("unsupported baud rate %s", f))
	}

	t, err := unix.IoctlGetTermios(int(p.f.Fd()), unix.TCGETS)
	if err != nil {
		return nil, p.wrap(err)
	}
	// Raw mode, no line discipline processing.
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CMSPAR | unix.CSTOPB | unix.CRTSCTS
	t.Cflag |= unix.CLOCAL | unix.CREAD

	switch bits {
	case 5:
		t.Cflag |= unix.CS5
	case 6:
		t.Cflag |= unix.CS6
	case 7:
		t.Cflag |= unix.CS7
	case 8:
		t.Cflag |= unix.CS8
	default:
		return nil, p.wrap(fmt.Errorf("unsupported word length %d", bits))
	}
	switch parity {
	case uart.NoParity:
	case uart.Odd:
		t.Cflag |= unix.PARENB | unix.PARODD
	case uart.Even:
		t.Cflag |= unix.PARENB
	case uart.Mark:
		t.Cflag |= unix.PARENB | unix.PARODD | unix.CMSPAR
	case uart.Space:
		t.Cflag |= unix.PARENB | unix.CMSPAR
	default:
		return nil, p.wrap(fmt.Errorf("unsupported parity %q", parity))
	}
	switch stopBit {
	case uart.One:
	case uart.Two:
		t.Cflag |= unix.CSTOPB
	default:
		// The tty layer cannot generate one and a half stop bits.
		return nil, p.wrap(fmt.Errorf("unsupported stop bits %v", stopBit))
	}
	switch flow {
	case uart.NoFlow:
	case uart.XOnXOff:
		t.Iflag |= unix.IXON | unix.IXOFF
	case uart.RTSCTS:
		t.Cflag |= unix.CRTSCTS
	default:
		return nil, p.wrap(fmt.Errorf("unsupported flow control %v", flow))
	}

	t.Cflag &^= unix.CBAUD
	t.Cflag |= baud
	t.Ispeed = baud
	t.Ospeed = baud
	// Reads return as soon as a single byte is available; timeouts are
	// handled with poll in Read.
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(int(p.f.Fd()), unix.TCSETS, t); err != nil {
		return nil, p.wrap(err)
	}
	p.connected = true
	return p, nil
}

// Tx implements conn.Conn. It writes w, then reads until r is full.
func (p *Port) Tx(w, r []byte) error {
	if len(w) == 0 && len(r) == 0 {
		return p.wrap(errors.New("empty transaction"))
	}
	if len(w) != 0 {
		if _, err := p.Write(w); err != nil {
			return err
		}
	}
	for n := 0; n < len(r); {
		m, err := p.Read(r[n:])
		if err != nil {
			return err
		}
		n += m
	}
	return nil
}

// Duplex implements conn.Conn.
func (p *Port) Duplex() conn.Duplex {
	return conn.Full
}

// Read reads up to len(b) bytes from the port.
//
// It blocks until at least one byte is available or the timeout set with
// SetReadTimeout expires, in which case it returns os.ErrDeadlineExceeded.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	timeout := p.readTimeout
	p.mu.Unlock()
	ms := -1
	if timeout > 0 {
		ms = int(timeout.Milliseconds())
	}
	for {
		fds := []unix.PollFd{{Fd: int32(p.f.Fd()), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, p.wrap(err)
		}
		if n == 0 {
			return 0, os.ErrDeadlineExceeded
		}
		break
	}
	n, err := p.f.Read(b)
	if err != nil {
		return n, p.wrap(err)
	}
	return n, nil
}

// Write writes b to the port. It blocks until the tty buffer accepted all
// of it.
func (p *Port) Write(b []byte) (int, error) {
	n, err := p.f.Write(b)
	if err != nil {
		return n, p.wrap(err)
	}
	return n, nil
}

// SetReadTimeout bounds the time a Read blocks waiting for data. Zero
// restores blocking reads.
func (p *Port) SetReadTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return p.wrap(fmt.Errorf("invalid timeout %s", timeout))
	}
	p.mu.Lock()
	p.readTimeout = timeout
	p.mu.Unlock()
	return nil
}

// InWaiting returns the number of received bytes not yet read.
func (p *Port) InWaiting() (int, error) {
	n, err := unix.IoctlGetInt(int(p.f.Fd()), unix.TIOCINQ)
	if err != nil {
		return 0, p.wrap(err)
	}
	return n, nil
}

// OutWaiting returns the number of written bytes not yet transmitted.
func (p *Port) OutWaiting() (int, error) {
	n, err := unix.IoctlGetInt(int(p.f.Fd()), unix.TIOCOUTQ)
	if err != nil {
		return 0, p.wrap(err)
	}
	return n, nil
}

// Flush discards both unread received data and untransmitted written data.
func (p *Port) Flush() error {
	if err := fs.Ioctl(p.f.Fd(), unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		return p.wrap(err)
	}
	return nil
}

// FlushInput discards received data not yet read.
func (p *Port) FlushInput() error {
	if err := fs.Ioctl(p.f.Fd(), unix.TCFLSH, unix.TCIFLUSH); err != nil {
		return p.wrap(err)
	}
	return nil
}

// FlushOutput discards written data not yet transmitted.
func (p *Port) FlushOutput() error {
	if err := fs.Ioctl(p.f.Fd(), unix.TCFLSH, unix.TCOFLUSH); err != nil {
		return p.wrap(err)
	}
	return nil
}

// SendBreak transmits a break condition for 0.25 to 0.5 seconds.
func (p *Port) SendBreak() error {
	if err := fs.Ioctl(p.f.Fd(), unix.TCSBRK, 0); err != nil {
		return p.wrap(err)
	}
	return nil
}

func (p *Port) wrap(err error) error {
	return fmt.Errorf("uart (%s): %v", p, err)
}

// bauds maps the discrete rates the tty layer accepts.
var bauds = map[int]uint32{
	50:      unix.B50,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

//

// driverUART implements periph.Driver.
type driverUART struct {
	ports []string
}

func (d *driverUART) String() string {
	return "uart"
}

func (d *driverUART) Prerequisites() []string {
	return nil
}

func (d *driverUART) After() []string {
	return nil
}

func (d *driverUART) Init() (bool, error) {
	names, err := Enumerate()
	if err != nil {
		return true, err
	}
	if len(names) == 0 {
		return false, errors.New("no serial port found")
	}
	for i, name := range names {
		d.ports = append(d.ports, name)
		aliases := []string{"/dev/" + name}
		n := name
		if err := uartreg.Register(name, aliases, i, func() (uart.PortCloser, error) {
			return New(n)
		}); err != nil {
			return true, err
		}
	}
	return true, nil
}

func init() {
	driverreg.MustRegister(&drvUART)
}

var drvUART driverUART

var uartDevRoot = "/dev"

var _ uart.PortCloser = &Port{}
var _ conn.Conn = &Port{}
