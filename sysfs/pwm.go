// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysfs

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
)

// ErrPWMInUse is returned when the requested PWM channel is already exported
// by another process and ForceOwn was not requested.
var ErrPWMInUse = errors.New("pwm channel is in use")

// EnumeratePWM returns the chip numbers of the PWM controllers available on
// the system, like the 0 in "pwmchip0".
func EnumeratePWM() ([]int, error) {
	items, err := os.ReadDir(pwmRoot)
	if err != nil {
		return nil, err
	}
	var chips []int
	for _, item := range items {
		if n, ok := trailingNumber(item.Name()); ok {
			chips = append(chips, n)
		}
	}
	sort.Ints(chips)
	return chips, nil
}

// PWMChannels returns the number of channels provided by a PWM chip.
func PWMChannels(chip int) (int, error) {
	return readInt(fmt.Sprintf("%s/pwmchip%d/npwm", pwmRoot, chip))
}

// PWM is a single output channel of a PWM controller.
//
// The channel is exported on open and unexported on Close, so at most one
// PWM per channel can be open at a time. Pass forceOwn to NewPWM to steal a
// channel left exported by a dead process.
type PWM struct {
	chip    int
	channel int
	root    string // Something like /sys/class/pwm/pwmchip0/pwm2/
}

// NewPWM exports channel on pwmchip chip and returns the channel ready for
// configuration.
//
// A channel that is already exported belongs to someone else and opening it
// fails with ErrPWMInUse, unless forceOwn is set, in which case it is
// unexported first.
func NewPWM(chip, channel int, forceOwn bool) (*PWM, error) {
	p := &PWM{
		chip:    chip,
		channel: channel,
		root:    fmt.Sprintf("%s/pwmchip%d/pwm%d/", pwmRoot, chip, channel),
	}
	chipRoot := fmt.Sprintf("%s/pwmchip%d/", pwmRoot, chip)
	if _, err := os.Stat(chipRoot); err != nil {
		return nil, p.wrap(err)
	}
	if num, err := readInt(chipRoot + "npwm"); err != nil || channel >= num || channel < 0 {
		return nil, p.wrap(fmt.Errorf("chip has no channel %d", channel))
	}
	if _, err := os.Stat(p.root); err == nil {
		if !forceOwn {
			return nil, p.wrap(ErrPWMInUse)
		}
		if err := writeInt(chipRoot+"unexport", channel); err != nil {
			return nil, p.wrap(err)
		}
	}
	if err := writeInt(chipRoot+"export", channel); err != nil {
		return nil, p.wrap(err)
	}
	// Wait for udev to fix up the permissions on the attribute files.
	for start := time.Now(); ; {
		if err := p.waitReady(); err == nil {
			break
		} else if time.Since(start) > 2*time.Second {
			_ = writeInt(chipRoot+"unexport", channel)
			return nil, p.wrap(err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	return p, nil
}

func (p *PWM) waitReady() error {
	f, err := os.OpenFile(p.root+"period", os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	return f.Close()
}

// String implements conn.Resource.
func (p *PWM) String() string {
	return fmt.Sprintf("pwm%d.%d", p.chip, p.channel)
}

// Halt implements conn.Resource. It disables the output.
func (p *PWM) Halt() error {
	return p.SetEnabled(false)
}

// Close disables the output and unexports the channel.
func (p *PWM) Close() error {
	_ = p.SetEnabled(false)
	if err := writeInt(fmt.Sprintf("%s/pwmchip%d/unexport", pwmRoot, p.chip), p.channel); err != nil {
		return p.wrap(err)
	}
	return nil
}

// Chip returns the chip number the channel belongs to.
func (p *PWM) Chip() int {
	return p.chip
}

// Channel returns the channel number on the chip.
func (p *PWM) Channel() int {
	return p.channel
}

// Period returns the period of the output waveform.
func (p *PWM) Period() (time.Duration, error) {
	ns, err := readInt(p.root + "period")
	if err != nil {
		return 0, p.wrap(err)
	}
	return time.Duration(ns) * time.Nanosecond, nil
}

// SetPeriod sets the period of the output waveform.
//
// Setting a period shorter than the currently configured duty cycle fails,
// lower the duty cycle first.
func (p *PWM) SetPeriod(period time.Duration) error {
	if period < 0 {
		return p.wrap(fmt.Errorf("invalid period %s", period))
	}
	if err := writeInt(p.root+"period", int(period.Nanoseconds())); err != nil {
		return p.wrap(err)
	}
	return nil
}

// Duty returns the duty cycle as the active fraction of the period, between
// 0.0 and 1.0.
func (p *PWM) Duty() (float64, error) {
	period, err := readInt(p.root + "period")
	if err != nil {
		return 0, p.wrap(err)
	}
	if period == 0 {
		return 0, nil
	}
	duty, err := readInt(p.root + "duty_cycle")
	if err != nil {
		return 0, p.wrap(err)
	}
	return float64(duty) / float64(period), nil
}

// SetDuty sets the duty cycle as a fraction of the period, between 0.0 and
// 1.0. The period must be set first.
func (p *PWM) SetDuty(duty float64) error {
	if duty < 0 || duty > 1 {
		return p.wrap(fmt.Errorf("duty cycle %g is out of [0, 1]", duty))
	}
	period, err := readInt(p.root + "period")
	if err != nil {
		return p.wrap(err)
	}
	if err := writeInt(p.root+"duty_cycle", int(duty*float64(period))); err != nil {
		return p.wrap(err)
	}
	return nil
}

// Polarity of the PWM output waveform.
type Polarity string

const (
	// Normal means the duty cycle is the time the output is active.
	Normal Polarity = "normal"
	// Inversed means the duty cycle is the time the output is inactive.
	Inversed Polarity = "inversed"
)

// Polarity returns the polarity of the output waveform.
func (p *PWM) Polarity() (Polarity, error) {
	s, err := readStr(p.root + "polarity")
	if err != nil {
		return "", p.wrap(err)
	}
	return Polarity(s), nil
}

// SetPolarity sets the polarity of the output waveform.
//
// The kernel rejects polarity changes while the period is zero or the
// channel is enabled.
func (p *PWM) SetPolarity(pol Polarity) error {
	if pol != Normal && pol != Inversed {
		return p.wrap(fmt.Errorf("invalid polarity %q", pol))
	}
	if err := writeStr(p.root+"polarity", string(pol)); err != nil {
		return p.wrap(err)
	}
	return nil
}

// Enabled returns whether the channel is generating its waveform.
func (p *PWM) Enabled() (bool, error) {
	v, err := readInt(p.root + "enable")
	if err != nil {
		return false, p.wrap(err)
	}
	return v != 0, nil
}

// SetEnabled starts or stops the waveform generation.
func (p *PWM) SetEnabled(enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	if err := writeInt(p.root+"enable", v); err != nil {
		return p.wrap(err)
	}
	return nil
}

func (p *PWM) wrap(err error) error {
	return fmt.Errorf("sysfs-pwm (%s): %w", p, err)
}

var pwmRoot = "/sys/class/pwm"
