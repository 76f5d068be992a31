// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpioioctl provides GPIO pins through the Linux character device
// interface, /dev/gpiochip*.
//
// https://docs.kernel.org/userspace-api/gpio/chardev.html
//
// Pins are numbered with a single flat scheme across all chips, in ascending
// chip order. On Microchip CPUs the PIO banks hold 32 pins each, so the flat
// number of CPU pin PD15 is ('D'-'A')*32 + 15 = 111 and the pin can also be
// addressed as "PD15".
//
// Pins can be accessed via periph.io/x/conn/v3/gpio/gpioreg, via ByName()
// and ByNumber(), or by walking the Chips collection.
package gpioioctl
