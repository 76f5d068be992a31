// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpioioctl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"

	"github.com/linux4sam/mpio/fs"
	"github.com/linux4sam/mpio/sam"
)

// LineDir is the configured direction of a Pin.
type LineDir uint32

const (
	LineDirNotSet LineDir = 0
	LineInput     LineDir = 1
	LineOutput    LineDir = 2
)

// Chips is the set of GPIO chips found on the running device, in ascending
// /dev/gpiochip* order. Populated once at driver initialization.
var Chips []*Chip

// The consumer name used for line requests, program@pid. Initialized in
// init(). Utilities like gpioinfo report it for busy lines.
var consumer []byte

// ByNumber returns the pin with the given flat number, or nil.
func ByNumber(number int) *Pin {
	for _, chip := range Chips {
		if number >= chip.base && number < chip.base+chip.lineCount {
			return chip.lines[number-chip.base]
		}
	}
	return nil
}

// ByName returns a pin by name, or nil.
//
// The name can be a kernel line name like "PIOBU0", or a Microchip PIO pin
// name like "PD15" which resolves through the flat numbering scheme.
func ByName(name string) *Pin {
	if sam.IsPinName(name) {
		n, _ := sam.ParseName(name)
		return ByNumber(n)
	}
	for _, chip := range Chips {
		if p := chip.ByName(name); p != nil {
			return p
		}
	}
	return nil
}

// Pins returns all pins in flat numbering order.
func Pins() []*Pin {
	var all []*Pin
	for _, chip := range Chips {
		all = append(all, chip.lines...)
	}
	return all
}

// Pin is a single GPIO line of a chip. It implements gpio.PinIO.
//
// The kernel line request obtained by the first In() or Out() call is held
// until Close(), so the pin stays reserved against other processes between
// operations.
type Pin struct {
	number int    // flat library-wide pin number
	offset uint32 // line offset within the owning chip
	name   string
	chip   *Chip

	mu        sync.Mutex
	fd        int32    // line request fd, 0 when not requested
	fEvent    *os.File // wraps fd for deadline based event reads
	direction LineDir
	edge      gpio.Edge
	pull      gpio.Pull
}

// String implements conn.Resource.
func (p *Pin) String() string {
	return fmt.Sprintf("%s(%d)", p.name, p.number)
}

// Halt interrupts a pending WaitForEdge() or Poll(). Implements
// conn.Resource.
func (p *Pin) Halt() error {
	if p.fEvent != nil {
		return p.fEvent.SetReadDeadline(time.UnixMilli(0))
	}
	return nil
}

// Name implements pin.Pin. It returns the kernel line name when the line has
// one, otherwise "GPIO" followed by the flat pin number.
func (p *Pin) Name() string {
	return p.name
}

// Number implements pin.Pin. It returns the flat library-wide pin number,
// not the line offset within the chip.
func (p *Pin) Number() int {
	return p.number
}

// Offset returns the line offset within the owning chip.
func (p *Pin) Offset() int {
	return int(p.offset)
}

// Chip returns the chip the pin belongs to.
func (p *Pin) Chip() *Chip {
	return p.chip
}

// Consumer returns the consumer label the kernel reports for the line, or ""
// when the line is unused.
func (p *Pin) Consumer() string {
	var info lineInfo
	info.offset = p.offset
	if err := ioctlLineInfo(p.chip.file.Fd(), &info); err != nil {
		return ""
	}
	return strings.TrimRight(string(info.consumer[:]), "\x00")
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	return string(p.Func())
}

// Func implements pin.PinFunc.
func (p *Pin) Func() pin.Func {
	switch p.direction {
	case LineInput:
		if p.Read() {
			return gpio.IN_HIGH
		}
		return gpio.IN_LOW
	case LineOutput:
		if p.Read() {
			return gpio.OUT_HIGH
		}
		return gpio.OUT_LOW
	}
	return pin.FuncNone
}

// SupportedFuncs implements pin.PinFunc.
func (p *Pin) SupportedFuncs() []pin.Func {
	return []pin.Func{gpio.IN, gpio.OUT}
}

// SetFunc implements pin.PinFunc.
func (p *Pin) SetFunc(f pin.Func) error {
	switch f {
	case gpio.IN:
		return p.In(gpio.PullNoChange, gpio.NoEdge)
	case gpio.OUT_HIGH:
		return p.Out(gpio.High)
	case gpio.OUT, gpio.OUT_LOW:
		return p.Out(gpio.Low)
	default:
		return p.wrap(errors.New("unsupported function"))
	}
}

// In configures the pin as an input. Implements gpio.PinIn.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setIn(pull, edge)
}

// Read returns the level of the pin. Implements gpio.PinIn.
//
// The pin is configured as an input first if it isn't one already.
func (p *Pin) Read() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.direction != LineInput && p.direction != LineOutput {
		if err := p.setIn(gpio.PullNoChange, gpio.NoEdge); err != nil {
			log.Println(err)
			return gpio.Low
		}
	}
	var data lineValues
	data.mask = 0x01
	if err := ioctlGetLineValues(uintptr(p.fd), &data); err != nil {
		log.Println(p.wrap(err))
		return gpio.Low
	}
	return data.bits&0x01 == 0x01
}

// WaitForEdge waits for an edge event. Implements gpio.PinIn.
//
// The pin must have been configured with In() and a valid edge. A timeout of
// -1 waits forever. Call Halt() to interrupt a pending wait.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	_, ok := p.readEvent(timeout)
	return ok
}

// Poll blocks until the requested edge occurs or the timeout expires.
//
// It configures the pin for the requested edge as needed. On an event it
// returns which edge fired; on timeout it returns gpio.NoEdge and no error.
// A timeout of -1 waits forever.
func (p *Pin) Poll(edge gpio.Edge, timeout time.Duration) (gpio.Edge, error) {
	if edge == gpio.NoEdge {
		return gpio.NoEdge, p.wrap(errors.New("edge must be rising, falling or both"))
	}
	p.mu.Lock()
	if p.direction != LineInput || p.edge != edge {
		if err := p.setIn(p.pull, edge); err != nil {
			p.mu.Unlock()
			return gpio.NoEdge, err
		}
	}
	p.mu.Unlock()
	ev, ok := p.readEvent(timeout)
	if !ok {
		return gpio.NoEdge, nil
	}
	switch ev.ID {
	case eventRisingEdge:
		return gpio.RisingEdge, nil
	case eventFallingEdge:
		return gpio.FallingEdge, nil
	}
	return gpio.NoEdge, nil
}

// Pull returns the configured line bias. Implements gpio.PinIn.
func (p *Pin) Pull() gpio.Pull {
	return p.pull
}

// DefaultPull implements gpio.PinIn. The chardev API has no way to query
// the reset state, so it returns gpio.PullNoChange.
func (p *Pin) DefaultPull() gpio.Pull {
	return gpio.PullNoChange
}

// Out sets the pin as an output with the given level. Implements
// gpio.PinOut.
//
// When the pin is not an output yet, the level is part of the line request
// itself so the pin never glitches through the unintended level.
func (p *Pin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.direction != LineOutput {
		p.edge = gpio.NoEdge
		p.pull = gpio.PullNoChange
		if err := p.request(flagOutput, l, true); err != nil {
			return err
		}
		p.direction = LineOutput
		return nil
	}
	var data lineValues
	data.mask = 0x01
	if l {
		data.bits = 0x01
	}
	if err := ioctlSetLineValues(uintptr(p.fd), &data); err != nil {
		return p.wrap(err)
	}
	return nil
}

// PWM is not supported: the kernel drives PWM through a separate subsystem,
// see the sysfs package. Implements gpio.PinOut.
func (p *Pin) PWM(gpio.Duty, physic.Frequency) error {
	return p.wrap(errors.New("pwm is done through the pwm subsystem, see sysfs.PWM"))
}

// Close releases the kernel line request, if any.
func (p *Pin) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fEvent != nil {
		_ = p.fEvent.Close()
	} else if p.fd != 0 {
		_ = unix.Close(int(p.fd))
	}
	p.fEvent = nil
	p.fd = 0
	p.direction = LineDirNotSet
	p.edge = gpio.NoEdge
	p.pull = gpio.PullNoChange
}

//

// setIn configures the line as input. mu must be held.
func (p *Pin) setIn(pull gpio.Pull, edge gpio.Edge) error {
	flags := flagInput
	switch pull {
	case gpio.PullUp:
		flags |= flagBiasPullUp
	case gpio.PullDown:
		flags |= flagBiasPullDown
	case gpio.Float:
		flags |= flagBiasDisabled
	}
	switch edge {
	case gpio.RisingEdge:
		flags |= flagEdgeRising
	case gpio.FallingEdge:
		flags |= flagEdgeFalling
	case gpio.BothEdges:
		flags |= flagEdgeRising | flagEdgeFalling
	}
	if err := p.request(flags, gpio.Low, false); err != nil {
		return err
	}
	p.direction = LineInput
	p.edge = edge
	p.pull = pull
	return nil
}

// request obtains the line request fd, or reconfigures an already held one.
// mu must be held.
func (p *Pin) request(flags uint64, initial gpio.Level, hasInitial bool) error {
	if p.fd != 0 {
		var cfg lineConfig
		cfg.flags = flags
		if hasInitial {
			setInitial(&cfg, initial)
		}
		if err := ioctlLineConfig(uintptr(p.fd), &cfg); err != nil {
			return p.wrap(fmt.Errorf("line config: %w", err))
		}
		return nil
	}
	var req lineRequest
	req.offsets[0] = p.offset
	req.numLines = 1
	copy(req.consumer[:maxNameSize-1], consumer)
	req.config.flags = flags
	if hasInitial {
		setInitial(&req.config, initial)
	}
	if err := ioctlLineRequest(p.chip.file.Fd(), &req); err != nil {
		if err == unix.EBUSY {
			if c := p.Consumer(); c != "" {
				return p.wrap(fmt.Errorf("line already in use by %q", c))
			}
		}
		return p.wrap(fmt.Errorf("line request: %w", err))
	}
	p.fd = req.fd
	return nil
}

// setInitial attaches the initial output level to a line configuration so
// the kernel applies it atomically with the direction change.
func setInitial(cfg *lineConfig, initial gpio.Level) {
	cfg.attrs[0].attr.id = attrIDOutputValues
	if initial {
		cfg.attrs[0].attr.value = 0x01
	}
	cfg.attrs[0].mask = 0x01
	cfg.numAttrs = 1
}

// readEvent reads one edge event from the line request fd, waiting up to
// timeout. -1 waits forever.
func (p *Pin) readEvent(timeout time.Duration) (lineEvent, bool) {
	var ev lineEvent
	p.mu.Lock()
	if p.edge == gpio.NoEdge || p.direction != LineInput {
		p.mu.Unlock()
		log.Println(p.wrap(errors.New("edge detection is not configured, call In() first")))
		return ev, false
	}
	if p.fEvent == nil {
		if err := unix.SetNonblock(int(p.fd), true); err != nil {
			p.mu.Unlock()
			log.Println(p.wrap(err))
			return ev, false
		}
		p.fEvent = os.NewFile(uintptr(p.fd), p.name)
	}
	f := p.fEvent
	p.mu.Unlock()

	var err error
	if timeout < 0 {
		err = f.SetReadDeadline(time.Time{})
	} else {
		err = f.SetReadDeadline(time.Now().Add(timeout))
	}
	if err != nil {
		log.Println(p.wrap(err))
		return ev, false
	}
	// A timeout or a Halt() surfaces as an i/o timeout error.
	err = binary.Read(f, binary.LittleEndian, &ev)
	return ev, err == nil
}

func (p *Pin) wrap(err error) error {
	return fmt.Errorf("gpioioctl (%s): %v", p, err)
}

//

// Chip is one Linux GPIO character device, /dev/gpiochipN.
type Chip struct {
	name      string
	path      string
	label     string
	base      int // flat number of the chip's first line
	lineCount int
	lines     []*Pin
	file      *fs.File
}

// Name returns the chip name as reported by the kernel.
func (c *Chip) Name() string {
	return c.name
}

// Path returns the /dev/gpiochip* path of the chip.
func (c *Chip) Path() string {
	return c.path
}

// Label returns the chip label, typically the pin controller driver name
// like "atmel_pio4".
func (c *Chip) Label() string {
	return c.label
}

// LineCount returns the number of lines of the chip.
func (c *Chip) LineCount() int {
	return c.lineCount
}

// Lines returns the pins of this chip in line offset order.
func (c *Chip) Lines() []*Pin {
	return c.lines
}

// ByName returns the chip's line with the given kernel name, or nil.
func (c *Chip) ByName(name string) *Pin {
	for _, p := range c.lines {
		if p.name == name {
			return p
		}
	}
	return nil
}

// ByOffset returns the line at the given offset within the chip, or nil.
func (c *Chip) ByOffset(offset int) *Pin {
	if offset < 0 || offset >= len(c.lines) {
		return nil
	}
	return c.lines[offset]
}

// String implements conn.Resource.
func (c *Chip) String() string {
	return fmt.Sprintf("%s(%s)", c.name, c.label)
}

// Close releases the chip and every line request taken on it.
func (c *Chip) Close() error {
	for _, p := range c.lines {
		p.Close()
	}
	err := c.file.Close()
	c.file = nil
	return err
}

// newChip opens a chip and enumerates its lines. base is the flat number
// assigned to the chip's first line.
//
// At boot there is a window where the device node exists but udev has not
// applied the access rules yet, so permission errors are retried for a
// couple of seconds before giving up.
func newChip(devPath string, base int) (*Chip, error) {
	var f *fs.File
	var err error
	for retry := 0; ; retry++ {
		f, err = fs.Open(devPath, os.O_RDWR)
		if err == nil || !os.IsPermission(err) || retry >= 20 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("gpioioctl: need more access, try as root or setup udev rules: %v", err)
		}
		return nil, fmt.Errorf("gpioioctl: %v", err)
	}

	var info chipInfo
	if err := ioctlChipInfo(f.Fd(), &info); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("gpioioctl: chip info %s: %v", devPath, err)
	}
	c := &Chip{
		name:      strings.TrimRight(string(info.name[:]), "\x00"),
		path:      devPath,
		label:     strings.TrimRight(string(info.label[:]), "\x00"),
		base:      base,
		lineCount: int(info.lines),
		file:      f,
	}
	if c.label == "" {
		c.label = c.name
	}
	for i := 0; i < c.lineCount; i++ {
		var li lineInfo
		li.offset = uint32(i)
		if err := ioctlLineInfo(f.Fd(), &li); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("gpioioctl: line info %s:%d: %v", devPath, i, err)
		}
		p := &Pin{
			number: base + i,
			offset: uint32(i),
			name:   strings.TrimRight(string(li.name[:]), "\x00"),
			chip:   c,
		}
		c.lines = append(c.lines, p)
	}
	return c, nil
}

//

// driverGPIO implements periph.Driver.
type driverGPIO struct {
}

func (d *driverGPIO) String() string {
	return "gpioioctl"
}

func (d *driverGPIO) Prerequisites() []string {
	return nil
}

func (d *driverGPIO) After() []string {
	return nil
}

// Init enumerates /dev/gpiochip*, assigns the flat pin numbering in
// ascending chip order and registers every usable line with gpioreg.
func (d *driverGPIO) Init() (bool, error) {
	items, err := filepath.Glob("/dev/gpiochip*")
	if err != nil {
		return true, fmt.Errorf("gpioioctl: %w", err)
	}
	if len(items) == 0 {
		return false, errors.New("no GPIO chips found")
	}
	// Ascending numeric order so the flat numbering is stable; the glob
	// returns gpiochip10 before gpiochip2.
	sort.Slice(items, func(i, j int) bool {
		return chipNumber(items[i]) < chipNumber(items[j])
	})

	seen := map[string]struct{}{}
	base := 0
	for _, item := range items {
		chip, err := newChip(item, base)
		if err != nil {
			log.Println(err)
			continue
		}
		// A chip can appear under two device nodes (symlinks); count it once.
		if _, ok := seen[chip.name]; ok {
			_ = chip.Close()
			continue
		}
		seen[chip.name] = struct{}{}
		Chips = append(Chips, chip)
		base += chip.lineCount
	}
	if len(Chips) == 0 {
		return true, errors.New("gpioioctl: no usable GPIO chip")
	}

	hasBanks := sam.Present()
	registered := map[string]struct{}{}
	for _, p := range gpioreg.All() {
		registered[p.Name()] = struct{}{}
	}
	for _, p := range Pins() {
		if p.name == "" || p.name == "-" || p.name == "_" {
			p.name = fmt.Sprintf("GPIO%d", p.number)
		}
		if _, ok := registered[p.name]; ok {
			p.name = p.chip.name + "-" + p.name
			if _, ok = registered[p.name]; ok {
				continue
			}
		}
		registered[p.name] = struct{}{}
		if err := gpioreg.Register(p); err != nil {
			log.Println("gpioioctl:", err)
			continue
		}
		_ = gpioreg.RegisterAlias(strconv.Itoa(p.number), p.name)
		if hasBanks {
			if bank, err := sam.PinName(p.number); err == nil && bank != p.name {
				_ = gpioreg.RegisterAlias(bank, p.name)
			}
		}
	}
	return true, nil
}

// chipNumber extracts the trailing number of a /dev/gpiochip* path.
func chipNumber(devPath string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(path.Base(devPath), "gpiochip"))
	if err != nil {
		return -1
	}
	return n
}

func init() {
	fname := path.Base(os.Args[0])
	s := fmt.Sprintf("%s@%d", fname, os.Getpid())
	b := []byte(s)
	if len(b) >= maxNameSize {
		b = b[:maxNameSize-1]
	}
	consumer = b

	driverreg.MustRegister(&drvGPIO)
}

var drvGPIO driverGPIO

var _ gpio.PinIO = &Pin{}
var _ gpio.PinIn = &Pin{}
var _ gpio.PinOut = &Pin{}
var _ pin.PinFunc = &Pin{}
