// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sam

import "testing"

func TestParseName(t *testing.T) {
	data := []struct {
		name string
		want int
	}{
		{"PA0", 0},
		{"pa0", 0},
		{"PA31", 31},
		{"PB0", 32},
		{"PD15", 111},
		{"PE3", 131},
	}
	for _, line := range data {
		got, err := ParseName(line.name)
		if err != nil {
			t.Fatalf("ParseName(%q): %v", line.name, err)
		}
		if got != line.want {
			t.Errorf("ParseName(%q) = %d, want %d", line.name, got, line.want)
		}
	}
}

func TestParseNameInvalid(t *testing.T) {
	for _, name := range []string{"", "P", "PA", "QA0", "PA32", "PA-1", "PAx", "15", "GPIO12"} {
		if _, err := ParseName(name); err == nil {
			t.Errorf("ParseName(%q) accepted an invalid name", name)
		}
		if IsPinName(name) {
			t.Errorf("IsPinName(%q) = true", name)
		}
	}
}

func TestPinName(t *testing.T) {
	data := []struct {
		pin  int
		want string
	}{
		{0, "PA0"},
		{31, "PA31"},
		{32, "PB0"},
		{111, "PD15"},
	}
	for _, line := range data {
		got, err := PinName(line.pin)
		if err != nil {
			t.Fatalf("PinName(%d): %v", line.pin, err)
		}
		if got != line.want {
			t.Errorf("PinName(%d) = %q, want %q", line.pin, got, line.want)
		}
	}
	if _, err := PinName(-1); err == nil {
		t.Error("PinName(-1) accepted an invalid number")
	}
	if _, err := PinName(26 * PinsPerBank); err == nil {
		t.Error("PinName accepted a number past the last bank")
	}
}

func TestRoundTrip(t *testing.T) {
	for pin := 0; pin < 4*PinsPerBank; pin++ {
		name, err := PinName(pin)
		if err != nil {
			t.Fatal(err)
		}
		back, err := ParseName(name)
		if err != nil {
			t.Fatal(err)
		}
		if back != pin {
			t.Fatalf("pin %d round tripped to %d via %q", pin, back, name)
		}
	}
}
