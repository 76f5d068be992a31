// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package distro identifies the board and CPU the library is running on.
//
// Identification is done from the device tree the kernel exposes under
// /sys/firmware/devicetree/base. The environment variables MPIO_CPU and
// MPIO_BOARD override detection, which is useful on development hosts and in
// tests.
package distro

import (
	"os"
	"strings"
	"sync"
)

// CPU returns a short identifier for the CPU on the current board, like
// "sama5d2" or "sam9x60".
//
// Returns "" when the CPU is not a known Microchip part.
func CPU() string {
	if fixed := os.Getenv("MPIO_CPU"); fixed != "" {
		return fixed
	}
	return lookup(cpus)
}

// Board returns a short identifier for the current board, like
// "sama5d2-xplained".
//
// Returns "" when the board is not a known Microchip evaluation kit.
func Board() string {
	if fixed := os.Getenv("MPIO_BOARD"); fixed != "" {
		return fixed
	}
	return lookup(boards)
}

// DTModel returns the model name from the device tree.
//
// Returns "<unknown>" on failure.
func DTModel() string {
	mu.Lock()
	defer mu.Unlock()
	if dtModel == "" {
		dtModel = "<unknown>"
		if b, err := os.ReadFile(dtBase + "model"); err == nil {
			dtModel = splitNull(b)[0]
		}
	}
	return dtModel
}

// DTCompatible returns the device tree compatible strings, most specific
// first.
func DTCompatible() []string {
	mu.Lock()
	defer mu.Unlock()
	if dtCompatible == nil {
		dtCompatible = []string{}
		if b, err := os.ReadFile(dtBase + "compatible"); err == nil {
			dtCompatible = splitNull(b)
		}
	}
	return dtCompatible
}

//

const dtBase = "/sys/firmware/devicetree/base/"

var (
	mu           sync.Mutex
	dtModel      string   // cached /sys/firmware/devicetree/base/model
	dtCompatible []string // cached /sys/firmware/devicetree/base/compatible
)

// match is one entry of an identification table: name is returned when
// compat is found among the device tree compatible strings.
type match struct {
	name   string
	compat string
}

// Ordering matters: a sama5d2 device tree is also compatible with sama5, so
// the most specific entries come first.
var cpus = []match{
	{"sam9x60", "microchip,sam9x60"},
	{"sam9x7", "microchip,sam9x7"},
	{"sama5d3", "atmel,sama5d3"},
	{"sama5d4", "atmel,sama5d4"},
	{"sama5d2", "atmel,sama5d2"},
	{"sama7d6", "microchip,sama7d6"},
	{"sama7g5", "microchip,sama7g5"},
	{"at91sam9x5", "atmel,at91sam9x5"},
}

var boards = []match{
	{"sam9x60-curiosity", "microchip,sam9x60-curiosity"},
	{"sam9x60-ek", "microchip,sam9x60ek"},
	{"sam9x75-curiosity", "microchip,sam9x75-curiosity"},
	{"sam9x75-eb", "microchip,sam9x75eb"},
	{"sama5d3-xplained", "atmel,sama5d3-xplained"},
	{"sama5d4-xplained", "atmel,sama5d4-xplained"},
	{"sama5d2-xplained", "atmel,sama5d2-xplained"},
	{"sama5d27-som1-ek", "atmel,sama5d27-som1-ek"},
	{"sama5d27-wlsom1-ek", "microchip,sama5d27-wlsom1-ek"},
	{"sama5d29-curiosity", "microchip,sama5d29-curiosity"},
	{"sama5d2-ptc-ek", "atmel,sama5d2-ptc_ek"},
	{"sama7d65-curiosity", "microchip,sama7d65-curiosity"},
	{"sama7g5-ek", "microchip,sama7g5ek"},
	{"at91sam9x35-ek", "atmel,at91sam9g35ek"},
}

func lookup(table []match) string {
	for _, m := range table {
		for _, compat := range DTCompatible() {
			if strings.Contains(compat, m.compat) {
				return m.name
			}
		}
	}
	return ""
}

// splitNull splits the NUL separated string lists found in device tree
// properties.
func splitNull(b []byte) []string {
	out := strings.Split(string(b), "\x00")
	if len(out) != 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return out
}
