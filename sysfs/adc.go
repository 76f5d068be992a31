// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysfs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"periph.io/x/conn/v3/physic"

	"github.com/linux4sam/mpio/fs"
)

// ErrNoScale is returned when the ADC does not publish a scale attribute, in
// which case only raw values are available.
var ErrNoScale = errors.New("adc does not provide a scale")

// EnumerateADC returns the device numbers of the IIO ADC devices available
// on the system, like the 0 in "iio:device0".
func EnumerateADC() ([]int, error) {
	items, err := os.ReadDir(adcRoot)
	if err != nil {
		return nil, err
	}
	var devices []int
	for _, item := range items {
		if !strings.HasPrefix(item.Name(), "iio:device") {
			continue
		}
		if n, ok := trailingNumber(item.Name()); ok {
			devices = append(devices, n)
		}
	}
	sort.Ints(devices)
	return devices, nil
}

// ADC is an analog to digital converter exposed by the kernel IIO subsystem.
//
// Single conversions are read directly from the raw channel attributes.
// Continuous acquisition goes through the triggered buffer interface, see
// StartCapture.
type ADC struct {
	device int
	root   string // Something like /sys/bus/iio/devices/iio:device0/

	mu      sync.Mutex
	fBuffer *fs.File  // /dev/iio:deviceN while a capture is running
	event   fs.Event  // epoll handle armed on fBuffer
	capture int       // channel being captured, -1 when idle
	done    chan struct{}
}

// NewADC opens the IIO ADC device with the given number.
func NewADC(device int) (*ADC, error) {
	a := &ADC{
		device:  device,
		root:    fmt.Sprintf("%s/iio:device%d/", adcRoot, device),
		capture: -1,
	}
	if _, err := os.Stat(a.root); err != nil {
		return nil, a.wrap(err)
	}
	return a, nil
}

// String implements conn.Resource.
func (a *ADC) String() string {
	return fmt.Sprintf("adc%d", a.device)
}

// Halt implements conn.Resource. It stops a running capture.
func (a *ADC) Halt() error {
	return a.StopCapture()
}

// Close stops a running capture and releases the device.
func (a *ADC) Close() error {
	return a.StopCapture()
}

// Name returns the kernel name of the converter, like "ad7124".
func (a *ADC) Name() (string, error) {
	s, err := readStr(a.root + "name")
	if err != nil {
		return "", a.wrap(err)
	}
	return s, nil
}

// AvailableChannels returns the voltage channels the converter provides.
func (a *ADC) AvailableChannels() ([]int, error) {
	items, err := os.ReadDir(a.root)
	if err != nil {
		return nil, a.wrap(err)
	}
	var channels []int
	for _, item := range items {
		name := item.Name()
		if !strings.HasPrefix(name, "in_voltage") || !strings.HasSuffix(name, "_raw") {
			continue
		}
		n, err := strconv.Atoi(name[len("in_voltage") : len(name)-len("_raw")])
		if err != nil {
			continue
		}
		channels = append(channels, n)
	}
	sort.Ints(channels)
	return channels, nil
}

// AvailableTriggers returns the names of the IIO triggers present on the
// system. Any of them can be passed to SetTrigger.
func (a *ADC) AvailableTriggers() ([]string, error) {
	items, err := os.ReadDir(adcRoot)
	if err != nil {
		return nil, a.wrap(err)
	}
	var names []string
	for _, item := range items {
		if !strings.HasPrefix(item.Name(), "trigger") {
			continue
		}
		n, err := readStr(adcRoot + "/" + item.Name() + "/name")
		if err != nil {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Trigger returns the name of the trigger driving the capture buffer.
func (a *ADC) Trigger() (string, error) {
	s, err := readStr(a.root + "trigger/current_trigger")
	if err != nil {
		return "", a.wrap(err)
	}
	return s, nil
}

// SetTrigger selects the trigger driving the capture buffer by name.
func (a *ADC) SetTrigger(name string) error {
	if err := writeStr(a.root+"trigger/current_trigger", name); err != nil {
		return a.wrap(err)
	}
	return nil
}

// SamplingFrequency returns the conversion rate.
func (a *ADC) SamplingFrequency() (physic.Frequency, error) {
	v, err := readInt(a.root + "sampling_frequency")
	if err != nil {
		return 0, a.wrap(err)
	}
	return physic.Frequency(v) * physic.Hertz, nil
}

// SetSamplingFrequency sets the conversion rate.
func (a *ADC) SetSamplingFrequency(f physic.Frequency) error {
	if err := writeInt(a.root+"sampling_frequency", int(f/physic.Hertz)); err != nil {
		return a.wrap(err)
	}
	return nil
}

// Value reads one raw conversion from a channel.
func (a *ADC) Value(channel int) (int, error) {
	v, err := readInt(fmt.Sprintf("%sin_voltage%d_raw", a.root, channel))
	if err != nil {
		return 0, a.wrap(err)
	}
	return v, nil
}

// Scale returns the voltage of one LSB of a raw value.
//
// Converters without a scale attribute return ErrNoScale.
func (a *ADC) Scale() (physic.ElectricPotential, error) {
	s, err := readStr(a.root + "in_voltage_scale")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, a.wrap(ErrNoScale)
		}
		return 0, a.wrap(err)
	}
	// The attribute is in millivolts per LSB.
	mv, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, a.wrap(err)
	}
	return physic.ElectricPotential(mv * float64(physic.MilliVolt)), nil
}

// Voltage reads one conversion from a channel and applies the converter
// scale.
func (a *ADC) Voltage(channel int) (physic.ElectricPotential, error) {
	scale, err := a.Scale()
	if err != nil {
		return 0, err
	}
	raw, err := a.Value(channel)
	if err != nil {
		return 0, err
	}
	return physic.ElectricPotential(raw) * scale, nil
}

// StartCapture starts buffered acquisition on a channel using the currently
// selected trigger.
//
// length is the size of the kernel buffer in samples. Samples are drained
// with ReadCapture and acquisition runs until StopCapture.
func (a *ADC) StartCapture(channel, length int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capture != -1 {
		return a.wrap(errors.New("capture already running"))
	}
	if err := writeInt(fmt.Sprintf("%sscan_elements/in_voltage%d_en", a.root, channel), 1); err != nil {
		return a.wrap(err)
	}
	if err := writeInt(a.root+"buffer/length", length); err != nil {
		return a.wrap(err)
	}
	if err := writeInt(a.root+"buffer/enable", 1); err != nil {
		return a.wrap(err)
	}
	f, err := fs.Open(fmt.Sprintf("%s/iio:device%d", adcDevRoot, a.device), os.O_RDONLY|unix.O_NONBLOCK)
	if err != nil {
		_ = writeInt(a.root+"buffer/enable", 0)
		return a.wrap(err)
	}
	if err := a.event.MakeEvent(f.Fd(), fs.EpollIn); err != nil {
		_ = f.Close()
		_ = writeInt(a.root+"buffer/enable", 0)
		return a.wrap(err)
	}
	a.fBuffer = f
	a.capture = channel
	return nil
}

// ReadCapture reads up to len(samples) raw values from the running capture.
//
// It blocks until at least one sample is available or the timeout expires,
// and returns the number of samples stored. Pass a negative timeout to
// block indefinitely.
func (a *ADC) ReadCapture(samples []int, timeout time.Duration) (int, error) {
	a.mu.Lock()
	f := a.fBuffer
	a.mu.Unlock()
	if f == nil {
		return 0, a.wrap(errors.New("capture is not running"))
	}
	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}
	n, err := a.event.Wait(ms)
	if err != nil {
		return 0, a.wrap(err)
	}
	if n == 0 {
		return 0, nil
	}
	// Samples are 16 bits wide on the SAM converters.
	raw := make([]byte, 2*len(samples))
	nb, err := f.Read(raw)
	if err != nil {
		return 0, a.wrap(err)
	}
	for i := 0; i < nb/2; i++ {
		samples[i] = int(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return nb / 2, nil
}

// StopCapture stops buffered acquisition. It is a no-op when no capture is
// running.
func (a *ADC) StopCapture() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capture == -1 {
		return nil
	}
	if a.done != nil {
		close(a.done)
		a.done = nil
	}
	var err error
	if a.fBuffer != nil {
		err = a.fBuffer.Close()
		a.fBuffer = nil
	}
	_ = a.event.Close()
	if err1 := writeInt(a.root+"buffer/enable", 0); err == nil {
		err = err1
	}
	if err1 := writeInt(fmt.Sprintf("%sscan_elements/in_voltage%d_en", a.root, a.capture), 0); err == nil {
		err = err1
	}
	a.capture = -1
	if err != nil {
		return a.wrap(err)
	}
	return nil
}

// CaptureFunc starts buffered acquisition on a channel and delivers every
// sample to f from a background goroutine, until StopCapture is called.
//
// f runs on the capture goroutine, it must not call back into the ADC.
func (a *ADC) CaptureFunc(channel, length int, f func(value int)) error {
	if err := a.StartCapture(channel, length); err != nil {
		return err
	}
	done := make(chan struct{})
	a.mu.Lock()
	a.done = done
	a.mu.Unlock()
	go func() {
		samples := make([]int, length)
		for {
			select {
			case <-done:
				return
			default:
			}
			n, err := a.ReadCapture(samples, 100*time.Millisecond)
			if err != nil {
				return
			}
			for _, v := range samples[:n] {
				f(v)
			}
		}
	}()
	return nil
}

func (a *ADC) wrap(err error) error {
	return fmt.Errorf("sysfs-adc (%s): %w", a, err)
}

var (
	adcRoot    = "/sys/bus/iio/devices"
	adcDevRoot = "/dev"
)
