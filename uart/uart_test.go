// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package uart

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/uart"
)

func makeDevRoot(t *testing.T, names ...string) {
	t.Helper()
	old := uartDevRoot
	uartDevRoot = t.TempDir()
	t.Cleanup(func() { uartDevRoot = old })
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(uartDevRoot, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEnumerate(t *testing.T) {
	makeDevRoot(t, "ttyS0", "ttyS1", "ttyUSB0", "ttyACM2", "i2c-0")
	names, err := Enumerate()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"ttyACM2", "ttyS0", "ttyS1", "ttyUSB0"}
	if len(names) != len(want) {
		t.Fatalf("Enumerate() = %v", names)
	}
	for i := range names {
		if names[i] != want[i] {
			t.Fatalf("Enumerate() = %v, want %v", names, want)
		}
	}
}

func TestNew(t *testing.T) {
	makeDevRoot(t, "ttyS0")
	p, err := New("/dev/ttyS0")
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if p.String() != "ttyS0" {
		t.Fatalf("String() = %q", p.String())
	}
	if _, err := New("ttyS9"); err == nil {
		t.Fatal("accepted a missing port")
	}
}

func TestConnectNotATTY(t *testing.T) {
	makeDevRoot(t, "ttyS0")
	p, err := New("ttyS0")
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	// A regular file rejects TCGETS.
	if _, err := p.Connect(115200*physic.Hertz, uart.One, uart.NoParity, uart.NoFlow, 8); err == nil {
		t.Fatal("Connect succeeded on a regular file")
	}
}

func TestConnectBadParameters(t *testing.T) {
	makeDevRoot(t, "ttyS0")
	p, err := New("ttyS0")
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if _, err := p.Connect(12345*physic.Hertz, uart.One, uart.NoParity, uart.NoFlow, 8); err == nil {
		t.Fatal("accepted a baud rate the tty layer cannot generate")
	}
}

func TestReadTimeout(t *testing.T) {
	makeDevRoot(t, "ttyS0")
	p, err := New("ttyS0")
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if err := p.SetReadTimeout(-time.Second); err == nil {
		t.Fatal("accepted a negative timeout")
	}
	if err := p.SetReadTimeout(50 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
}

func TestLimitSpeed(t *testing.T) {
	makeDevRoot(t, "ttyS0")
	p, err := New("ttyS0")
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if err := p.LimitSpeed(0); err == nil {
		t.Fatal("accepted an invalid speed limit")
	}
	if err := p.LimitSpeed(9600 * physic.Hertz); err != nil {
		t.Fatal(err)
	}
}

func TestBaudTable(t *testing.T) {
	data := []struct {
		rate int
		want uint32
	}{
		{9600, unix.B9600},
		{115200, unix.B115200},
		{3000000, unix.B3000000},
	}
	for _, line := range data {
		if got, ok := bauds[line.rate]; !ok || got != line.want {
			t.Errorf("bauds[%d] = %#x, %t", line.rate, got, ok)
		}
	}
	if _, ok := bauds[12345]; ok {
		t.Error("bauds contains a rate the tty layer cannot generate")
	}
}
