// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysfs

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"

	"github.com/linux4sam/mpio/fs"
)

// LEDs is all the LEDs registered in the Linux LED subsystem.
//
// Only LEDs described to the kernel, via device tree or board setup, show up
// here. An LED wired to a plain GPIO without a kernel binding is driven
// through the gpioioctl package instead.
//
// This global variable is initialized once at driver initialization and
// isn't mutated afterward. Do not modify it.
var LEDs []*LED

// LEDByName returns the LED with the given sysfs name, like
// "red:user", or nil.
func LEDByName(name string) *LED {
	for _, l := range LEDs {
		if l.name == name {
			return l
		}
	}
	return nil
}

// EnumerateLED returns the names of the LEDs available on the system.
func EnumerateLED() ([]string, error) {
	items, err := os.ReadDir(ledRoot)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, item := range items {
		names = append(names, item.Name())
	}
	sort.Strings(names)
	return names, nil
}

// LED represents one LED found in /sys/class/leds.
//
// A single physical RGB LED usually shows up as 3 independent LEDs here,
// one per color channel.
//
// It implements gpio.PinOut: Out(gpio.High) sets maximum brightness and
// PWM() maps the duty cycle onto the brightness range.
type LED struct {
	name string
	root string // Something like /sys/class/leds/red:user/

	mu          sync.Mutex
	fBrightness *fs.File // handle to brightness; cached between calls
}

// String implements conn.Resource.
func (l *LED) String() string {
	return l.name
}

// Halt implements conn.Resource. It turns the LED off.
func (l *LED) Halt() error {
	return l.SetBrightness(0)
}

// Name implements pin.Pin.
func (l *LED) Name() string {
	return l.name
}

// Number implements pin.Pin. LEDs are not numbered, it returns the index in
// LEDs.
func (l *LED) Number() int {
	for i, led := range LEDs {
		if led == l {
			return i
		}
	}
	return -1
}

// Function implements pin.Pin.
func (l *LED) Function() string {
	return string(l.Func())
}

// Func implements pin.PinFunc.
func (l *LED) Func() pin.Func {
	if l.Read() {
		return gpio.OUT_HIGH
	}
	return gpio.OUT_LOW
}

// SupportedFuncs implements pin.PinFunc.
func (l *LED) SupportedFuncs() []pin.Func {
	return []pin.Func{gpio.OUT}
}

// SetFunc implements pin.PinFunc.
func (l *LED) SetFunc(f pin.Func) error {
	switch f {
	case gpio.OUT_HIGH:
		return l.Out(gpio.High)
	case gpio.OUT, gpio.OUT_LOW:
		return l.Out(gpio.Low)
	default:
		return l.wrap(errors.New("unsupported function"))
	}
}

// Brightness returns the current brightness value.
func (l *LED) Brightness() (int, error) {
	return readInt(l.root + "brightness")
}

// MaxBrightness returns the maximum brightness value supported by the LED.
func (l *LED) MaxBrightness() (int, error) {
	return readInt(l.root + "max_brightness")
}

// SetBrightness sets the output brightness of the LED.
func (l *LED) SetBrightness(value int) error {
	if value < 0 {
		return l.wrap(fmt.Errorf("invalid brightness %d", value))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fBrightness == nil {
		var err error
		if l.fBrightness, err = fs.Open(l.root+"brightness", os.O_RDWR); err != nil {
			return l.wrap(err)
		}
	}
	if err := seekWrite(l.fBrightness, []byte(fmt.Sprintf("%d", value))); err != nil {
		return l.wrap(err)
	}
	return nil
}

// Trigger returns the active kernel trigger of the LED, like "heartbeat",
// or "none".
func (l *LED) Trigger() (string, error) {
	s, err := readStr(l.root + "trigger")
	if err != nil {
		return "", l.wrap(err)
	}
	// The active trigger is the bracketed entry of the list.
	if i := strings.IndexByte(s, '['); i != -1 {
		if j := strings.IndexByte(s[i:], ']'); j != -1 {
			return s[i+1 : i+j], nil
		}
	}
	return s, nil
}

// Triggers returns the triggers available for the LED.
func (l *LED) Triggers() ([]string, error) {
	s, err := readStr(l.root + "trigger")
	if err != nil {
		return nil, l.wrap(err)
	}
	names := strings.Fields(s)
	for i, n := range names {
		names[i] = strings.Trim(n, "[]")
	}
	return names, nil
}

// SetTrigger sets the kernel trigger of the LED. Use "none" to get back
// manual brightness control.
func (l *LED) SetTrigger(name string) error {
	if err := writeStr(l.root+"trigger", name); err != nil {
		return l.wrap(err)
	}
	return nil
}

// In implements gpio.PinIn. An LED is output only, so only a no-op
// configuration is accepted.
func (l *LED) In(pull gpio.Pull, edge gpio.Edge) error {
	if pull != gpio.PullNoChange && pull != gpio.Float {
		return l.wrap(errors.New("pull is not supported on a LED"))
	}
	if edge != gpio.NoEdge {
		return l.wrap(errors.New("edge detection is not supported on a LED"))
	}
	return nil
}

// Read implements gpio.PinIn. It returns gpio.High when the LED is lit.
func (l *LED) Read() gpio.Level {
	v, err := l.Brightness()
	return err == nil && v != 0
}

// WaitForEdge implements gpio.PinIn. It is not supported and returns false
// immediately.
func (l *LED) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Pull implements gpio.PinIn.
func (l *LED) Pull() gpio.Pull {
	return gpio.PullNoChange
}

// DefaultPull implements gpio.PinIn.
func (l *LED) DefaultPull() gpio.Pull {
	return gpio.PullNoChange
}

// Out implements gpio.PinOut. High sets maximum brightness, Low turns the
// LED off.
func (l *LED) Out(level gpio.Level) error {
	if level == gpio.Low {
		return l.SetBrightness(0)
	}
	max, err := l.MaxBrightness()
	if err != nil {
		return l.wrap(err)
	}
	return l.SetBrightness(max)
}

// PWM implements gpio.PinOut by scaling the duty cycle onto the brightness
// range. The frequency is ignored, the kernel drives the LED.
func (l *LED) PWM(duty gpio.Duty, _ physic.Frequency) error {
	max, err := l.MaxBrightness()
	if err != nil {
		return l.wrap(err)
	}
	return l.SetBrightness(int(int64(duty) * int64(max) / int64(gpio.DutyMax)))
}

func (l *LED) wrap(err error) error {
	return fmt.Errorf("sysfs-led (%s): %v", l, err)
}

//

var ledRoot = "/sys/class/leds"

// driverLED implements periph.Driver.
type driverLED struct {
}

func (d *driverLED) String() string {
	return "sysfs-led"
}

func (d *driverLED) Prerequisites() []string {
	return nil
}

func (d *driverLED) After() []string {
	return nil
}

// Init enumerates /sys/class/leds and registers each LED in gpioreg so it
// can be looked up by name like any output pin.
func (d *driverLED) Init() (bool, error) {
	names, err := EnumerateLED()
	if err != nil {
		return false, errors.New("no LED found")
	}
	for _, name := range names {
		l := &LED{
			name: name,
			root: ledRoot + "/" + name + "/",
		}
		LEDs = append(LEDs, l)
		_ = gpioreg.Register(l)
	}
	return true, nil
}

func init() {
	driverreg.MustRegister(&drvLED)
}

var drvLED driverLED

var _ conn.Resource = &LED{}
var _ gpio.PinIO = &LED{}
var _ pin.PinFunc = &LED{}
