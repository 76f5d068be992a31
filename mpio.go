// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mpio gives access to the peripherals found on Microchip ARM Linux
// boards: GPIO, ADC, PWM, LED, I2C/SMBus, SPI, serial ports, input devices
// and raw memory mapped registers.
//
// Each peripheral driver registers itself with
// periph.io/x/conn/v3/driver/driverreg. Call Init() once at startup, then
// look up resources through the conn registries (gpioreg, i2creg, spireg,
// uartreg) or through the per-package types directly.
package mpio

import "periph.io/x/conn/v3/driver/driverreg"

// Init calls driverreg.Init() and returns it as-is.
//
// The only difference is that by calling mpio.Init(), you are guaranteed to
// have all the drivers implemented in this library to be implicitly loaded.
func Init() (*driverreg.State, error) {
	return driverreg.Init()
}
