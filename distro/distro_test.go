// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package distro

import "testing"

func setCompatible(t *testing.T, compat ...string) {
	t.Helper()
	if compat == nil {
		// An empty cache, not a missing one; nil would trigger a re-read.
		compat = []string{}
	}
	mu.Lock()
	old := dtCompatible
	dtCompatible = compat
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		dtCompatible = old
		mu.Unlock()
	})
}

func TestCPUOverride(t *testing.T) {
	t.Setenv("MPIO_CPU", "sama5d2")
	if got := CPU(); got != "sama5d2" {
		t.Fatalf("CPU() = %q, want override", got)
	}
}

func TestBoardOverride(t *testing.T) {
	t.Setenv("MPIO_BOARD", "sama5d2-xplained")
	if got := Board(); got != "sama5d2-xplained" {
		t.Fatalf("Board() = %q, want override", got)
	}
}

func TestLookupCPU(t *testing.T) {
	t.Setenv("MPIO_CPU", "")
	data := []struct {
		compat []string
		want   string
	}{
		{[]string{"atmel,sama5d2-xplained", "atmel,sama5d2", "atmel,sama5"}, "sama5d2"},
		{[]string{"microchip,sam9x60ek", "microchip,sam9x60"}, "sam9x60"},
		{[]string{"microchip,sama7g5ek", "microchip,sama7g5", "microchip,sama7"}, "sama7g5"},
		{[]string{"raspberrypi,4-model-b", "brcm,bcm2711"}, ""},
		{[]string{}, ""},
	}
	for _, line := range data {
		setCompatible(t, line.compat...)
		if got := CPU(); got != line.want {
			t.Errorf("CPU() with %v = %q, want %q", line.compat, got, line.want)
		}
	}
}

func TestLookupBoard(t *testing.T) {
	t.Setenv("MPIO_BOARD", "")
	data := []struct {
		compat []string
		want   string
	}{
		{[]string{"atmel,sama5d2-xplained", "atmel,sama5d2", "atmel,sama5"}, "sama5d2-xplained"},
		{[]string{"microchip,sam9x60ek", "microchip,sam9x60"}, "sam9x60-ek"},
		{[]string{"microchip,sam9x60-curiosity", "microchip,sam9x60"}, "sam9x60-curiosity"},
		{[]string{"microchip,sama7g5ek", "microchip,sama7g5"}, "sama7g5-ek"},
		{[]string{"brcm,bcm2711"}, ""},
	}
	for _, line := range data {
		setCompatible(t, line.compat...)
		if got := Board(); got != line.want {
			t.Errorf("Board() with %v = %q, want %q", line.compat, got, line.want)
		}
	}
}

func TestSplitNull(t *testing.T) {
	data := []struct {
		in   string
		want []string
	}{
		{"atmel,sama5d2\x00atmel,sama5\x00", []string{"atmel,sama5d2", "atmel,sama5"}},
		{"one\x00", []string{"one"}},
		{"bare", []string{"bare"}},
		{"", []string{""}},
	}
	for _, line := range data {
		got := splitNull([]byte(line.in))
		if len(got) != len(line.want) {
			t.Fatalf("splitNull(%q) = %v, want %v", line.in, got, line.want)
		}
		for i := range got {
			if got[i] != line.want[i] {
				t.Errorf("splitNull(%q)[%d] = %q, want %q", line.in, i, got[i], line.want[i])
			}
		}
	}
}
