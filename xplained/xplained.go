// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Evaluation kit pin outs.

package xplained

import (
	"errors"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/pin"
	"periph.io/x/conn/v3/pin/pinreg"

	"github.com/linux4sam/mpio/distro"
)

// Present returns true if a known Microchip evaluation board is detected.
func Present() bool {
	_, ok := boards[distro.Board()]
	return ok
}

// board describes the user facing wiring of one evaluation kit.
//
// aliases maps stable names to PIO lines. mikroBus lists the 16 positions
// of the mikroBUS 1 socket, going down the left column (AN..GND) then the
// right one (PWM..GND); power positions use the net name instead of a PIO
// line.
type board struct {
	aliases  map[string]string
	mikroBus []string
}

// Kits not described here still work, their pins are just only reachable
// under the plain PIO names.
var boards = map[string]board{
	"sama5d2-xplained": {
		aliases: map[string]string{
			"LED_RED":     "PB6",
			"LED_GREEN":   "PB5",
			"LED_BLUE":    "PB0",
			"USER_BUTTON": "PB9",
		},
		mikroBus: []string{
			"PD19", "PB2", "PA17", "PA14", "PA16", "PA15", "3V3", "GND",
			"PB1", "PA19", "PB11", "PB12", "PD5", "PD4", "5V", "GND",
		},
	},
	"sam9x60-ek": {
		aliases: map[string]string{
			"LED_RED":     "PB11",
			"LED_GREEN":   "PB12",
			"LED_BLUE":    "PB13",
			"USER_BUTTON": "PD18",
		},
		mikroBus: []string{
			"PB18", "PB17", "PA7", "PA13", "PA12", "PA11", "3V3", "GND",
			"PB16", "PB15", "PA1", "PA0", "PA24", "PA23", "5V", "GND",
		},
	},
}

func registerHeaders(b *board) error {
	for alias, name := range b.aliases {
		if err := gpioreg.RegisterAlias(alias, name); err != nil {
			return err
		}
	}
	if len(b.mikroBus) != 0 {
		rows := make([][]pin.Pin, len(b.mikroBus))
		for i, name := range b.mikroBus {
			rows[i] = []pin.Pin{resolve(name)}
		}
		if err := pinreg.Register("MIKROBUS1", rows); err != nil {
			return err
		}
	}
	return nil
}

// resolve maps a socket position to its pin, which must already be
// registered by the GPIO driver.
func resolve(name string) pin.Pin {
	switch name {
	case "3V3":
		return pin.V3_3
	case "5V":
		return pin.V5
	case "GND":
		return pin.GROUND
	case "":
		return gpio.INVALID
	}
	if p := gpioreg.ByName(name); p != nil {
		return p
	}
	return gpio.INVALID
}

// driver implements periph.Driver.
type driver struct {
}

func (d *driver) String() string {
	return "xplained"
}

func (d *driver) Prerequisites() []string {
	return nil
}

// After makes sure the PIO lines exist before the headers refer to them.
func (d *driver) After() []string {
	return []string{"gpioioctl", "sysfs-gpio"}
}

func (d *driver) Init() (bool, error) {
	b, ok := boards[distro.Board()]
	if !ok {
		return false, errors.New("no Microchip evaluation board detected")
	}
	return true, registerHeaders(&b)
}

func init() {
	driverreg.MustRegister(&drv)
}

var drv driver
