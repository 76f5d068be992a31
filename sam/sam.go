// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sam maps Microchip PIO controller pin names to the flat pin
// numbers used by this library.
//
// Pins of SAM9/SAMA5/SAMA7 CPUs are grouped in banks of 32 named PA, PB, PC
// and so on. Pin "PA0" is flat pin 0, "PB0" is 32 and "PD15" is
// ('D'-'A')*32 + 15 = 111.
package sam

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/linux4sam/mpio/distro"
)

// PinsPerBank is the number of pins in one PIO bank.
const PinsPerBank = 32

// Present returns true if a Microchip SAM CPU is detected.
func Present() bool {
	return distro.CPU() != ""
}

// ParseName converts a PIO pin name like "PD15" to a flat pin number.
func ParseName(name string) (int, error) {
	s := strings.ToUpper(name)
	if len(s) < 3 || s[0] != 'P' || s[1] < 'A' || s[1] > 'Z' {
		return 0, fmt.Errorf("sam: invalid pin name %q", name)
	}
	index, err := strconv.Atoi(s[2:])
	if err != nil || index < 0 || index >= PinsPerBank {
		return 0, fmt.Errorf("sam: invalid pin index in %q", name)
	}
	return int(s[1]-'A')*PinsPerBank + index, nil
}

// PinName converts a flat pin number to its PIO name, like "PD15".
func PinName(pin int) (string, error) {
	if pin < 0 || pin >= 26*PinsPerBank {
		return "", fmt.Errorf("sam: invalid pin number %d", pin)
	}
	return fmt.Sprintf("P%c%d", 'A'+byte(pin/PinsPerBank), pin%PinsPerBank), nil
}

// IsPinName reports whether name looks like a PIO pin name.
func IsPinName(name string) bool {
	_, err := ParseName(name)
	return err == nil
}
